package planner

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/infra/fsx"
	"github.com/John-Robertt/photodate/internal/infra/imgx"
)

const (
	ExifSkipDisabled  = "disabled"
	ExifSkipUnchanged = "unchanged"
)

// ReadState 读取 path 当前的文件时间与 EXIF 日期标签。
//
// 非 JPEG 不读 EXIF；EXIF 缺失或无法解码时标签为空，不报错。
func ReadState(path string) (domain.FileState, error) {
	ft, err := fsx.Stat(path)
	if err != nil {
		return domain.FileState{}, domain.MarkIO(err, "读取 %q 的文件时间失败", path)
	}
	st := domain.FileState{ModTime: ft.ModTime, AccessTime: ft.AccessTime, BirthTime: ft.BirthTime}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
	default:
		return st, nil
	}

	tags, err := imgx.ReadTags(path)
	if err != nil {
		return domain.FileState{}, err
	}
	st.ExifOriginal = tags.DateTimeOriginal
	st.ExifDigitized = tags.DateTimeDigitized
	return st, nil
}

// Plan 基于解析结果与文件现状生成确定性的执行计划（不做任何写入）。
//
// - 只接受 JPEG；其他类型由调用方整体跳过
// - EXIF：未禁用、且两个标签不都等于目标值时才写
// - mtime：与目标相差不足一秒视为相同；只要写 EXIF 就一定重设 mtime
func Plan(file domain.MediaFile, res domain.Resolution, st domain.FileState, opts domain.PlanOptions) (domain.ItemPlan, error) {
	if !file.IsJPEG() {
		return domain.ItemPlan{}, errors.Newf("%q 不是 JPEG", file.AbsPath)
	}
	if !res.Resolved() || res.Timestamp.IsZero() {
		return domain.ItemPlan{}, errors.Newf("%q 尚未解析出日期", file.AbsPath)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	p := domain.ItemPlan{
		File:   file,
		Target: res.Timestamp,
		Mtime:  res.Timestamp.Time(loc),
	}

	switch {
	case opts.NoExif:
		p.ExifSkip = ExifSkipDisabled
	case st.ExifMatches(res.Timestamp):
		p.ExifSkip = ExifSkipUnchanged
	default:
		p.NeedExif = true
	}

	p.NeedMtime = p.NeedExif || st.ModTime.Unix() != p.Mtime.Unix()
	return p, nil
}
