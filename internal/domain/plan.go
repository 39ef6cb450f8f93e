package domain

import "time"

// FileState 描述写入前文件的现状（只读 stat 与 EXIF 标签，不改动文件）。
type FileState struct {
	ModTime    time.Time
	AccessTime time.Time
	BirthTime  time.Time // 平台不支持时为零值

	// 原样的 EXIF 字符串；缺失为空。
	ExifOriginal  string
	ExifDigitized string
}

// ExifMatches 判断两个 EXIF 日期标签是否都已等于 ts。
func (s FileState) ExifMatches(ts Timestamp) bool {
	want := ts.Exif()
	return s.ExifOriginal == want && s.ExifDigitized == want
}

// PlanOptions 控制哪些落盘动作可用。
type PlanOptions struct {
	NoExif bool

	// Location 决定民用时间如何映射为文件系统时间；nil 表示 time.Local。
	Location *time.Location
}

// ItemPlan 是单个文件的最小执行计划。
//
// 约束：NeedExif 为 true 时 NeedMtime 必为 true（EXIF 重写会改变 mtime）。
type ItemPlan struct {
	File   MediaFile
	Target Timestamp
	Mtime  time.Time

	NeedExif  bool
	NeedMtime bool

	// ExifSkip 说明 EXIF 为什么不写："disabled" / "unchanged"；需要写时为空。
	ExifSkip string
}

// Noop 表示文件已经是目标状态。
func (p ItemPlan) Noop() bool { return !p.NeedExif && !p.NeedMtime }
