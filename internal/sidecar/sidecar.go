package sidecar

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/John-Robertt/photodate/internal/domain"
)

// Suffix 是 sidecar 文件相对媒体文件的后缀：<file>.json。
const Suffix = ".json"

// metadata 只声明需要的字段（Google Takeout 导出格式）。
type metadata struct {
	PhotoTakenTime *struct {
		Timestamp *epoch `json:"timestamp"`
	} `json:"photoTakenTime"`
}

// epoch 接受 JSON 字符串（"1609459200"）或数字（1609459200）。
type epoch struct {
	raw string
}

func (e *epoch) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		e.raw = strings.TrimSpace(s)
		return nil
	}
	e.raw = string(b)
	return nil
}

// Path 返回 mediaPath 对应的 sidecar 路径。
func Path(mediaPath string) string {
	return mediaPath + Suffix
}

// Reader 读取 sidecar 中的拍摄时间。
//
// Location 决定 epoch 秒转换为民用时间时使用的时区；nil 表示 time.Local。
type Reader struct {
	Location *time.Location
}

// Read 是 Reader{}.Read 的简写（本地时区）。
func Read(mediaPath string) (domain.Timestamp, bool, error) {
	return Reader{}.Read(mediaPath)
}

// Read 查找 <mediaPath>.json 并提取 photoTakenTime.timestamp。
//
// 返回值：
// - sidecar 不存在 / 缺少字段：found=false, err=nil
// - JSON 无法解析 / timestamp 不是整数或超出 1..9999 年：err 标记为 MalformedInput
// - 其他读取错误：err 标记为 IOFailure
func (r Reader) Read(mediaPath string) (domain.Timestamp, bool, error) {
	p := Path(mediaPath)
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Timestamp{}, false, nil
		}
		return domain.Timestamp{}, false, domain.MarkIO(err, "读取 sidecar %q 失败", p)
	}

	var md metadata
	if err := json.Unmarshal(b, &md); err != nil {
		return domain.Timestamp{}, false, domain.MarkMalformed(err, "sidecar %q 不是合法 JSON", p)
	}
	if md.PhotoTakenTime == nil || md.PhotoTakenTime.Timestamp == nil || md.PhotoTakenTime.Timestamp.raw == "" {
		return domain.Timestamp{}, false, nil
	}

	sec, err := strconv.ParseInt(md.PhotoTakenTime.Timestamp.raw, 10, 64)
	if err != nil {
		return domain.Timestamp{}, false, domain.MarkMalformed(err, "sidecar %q 的 photoTakenTime.timestamp 不是整数", p)
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	ts, err := domain.FromTime(time.Unix(sec, 0).In(loc))
	if err != nil {
		return domain.Timestamp{}, false, domain.MarkMalformed(err, "sidecar %q 的 photoTakenTime.timestamp 超出可表示范围", p)
	}
	return ts, true, nil
}
