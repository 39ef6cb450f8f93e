package fsx

import (
	"os"
	"time"

	"github.com/djherbis/times"
)

// 测试可替换，用于模拟 chtimes 失败。
var chtimesFunc = os.Chtimes

// ModTime 返回 path 的最后修改时间。
func ModTime(path string) (time.Time, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return ts.ModTime(), nil
}

// FileTimes 是 path 的时间戳快照；BirthTime 在平台不支持时为零值。
type FileTimes struct {
	ModTime    time.Time
	AccessTime time.Time
	BirthTime  time.Time
}

// Stat 返回 path 的完整时间戳（planner 读取文件现状时使用）。
func Stat(path string) (FileTimes, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return FileTimes{}, err
	}
	out := FileTimes{ModTime: ts.ModTime(), AccessTime: ts.AccessTime()}
	if ts.HasBirthTime() {
		out.BirthTime = ts.BirthTime()
	}
	return out, nil
}

// SetTimes 把 path 的访问时间与修改时间都设置为 t。
func SetTimes(path string, t time.Time) error {
	return chtimesFunc(path, t, t)
}
