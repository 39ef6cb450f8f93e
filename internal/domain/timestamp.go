package domain

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// TimestampLayout 是 Timestamp 的规范文本形式（也是 CLI --date 的输入格式）。
	TimestampLayout = "2006-01-02 15:04:05"
	// ExifLayout 是 EXIF DateTime* 标签的原生格式（日期部分用冒号分隔）。
	ExifLayout = "2006:01:02 15:04:05"
)

// Timestamp 是不带时区的“民用”日期时间（精确到秒）。
//
// 不变量：六个字段必须是合法的日历值；只能经由 NewTimestamp/Parse*/FromTime 构造。
// 零值表示“未设置”，IsZero 可判断。
type Timestamp struct {
	year   int
	month  int
	day    int
	hour   int
	minute int
	second int
}

// NewTimestamp 校验并构造 Timestamp；任何字段越界都返回 ErrMalformedInput。
func NewTimestamp(year, month, day, hour, minute, second int) (Timestamp, error) {
	if year < 1 || year > 9999 {
		return Timestamp{}, malformedf("年份越界：%d", year)
	}
	if month < 1 || month > 12 {
		return Timestamp{}, malformedf("月份越界：%d", month)
	}
	if day < 1 || day > daysIn(year, month) {
		return Timestamp{}, malformedf("日期越界：%04d-%02d-%d", year, month, day)
	}
	if hour < 0 || hour > 23 {
		return Timestamp{}, malformedf("小时越界：%d", hour)
	}
	if minute < 0 || minute > 59 {
		return Timestamp{}, malformedf("分钟越界：%d", minute)
	}
	if second < 0 || second > 59 {
		return Timestamp{}, malformedf("秒越界：%d", second)
	}
	return Timestamp{year: year, month: month, day: day, hour: hour, minute: minute, second: second}, nil
}

// ParseTimestamp 解析规范形式 "YYYY-MM-DD HH:MM:SS"。
func ParseTimestamp(s string) (Timestamp, error) {
	return parseWithLayout(TimestampLayout, s)
}

// ParseExifTimestamp 解析 EXIF 原生形式 "YYYY:MM:DD HH:MM:SS"。
func ParseExifTimestamp(s string) (Timestamp, error) {
	return parseWithLayout(ExifLayout, s)
}

func parseWithLayout(layout, s string) (Timestamp, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Timestamp{}, errors.Mark(errors.Wrapf(err, "无法解析时间 %q", s), ErrMalformedInput)
	}
	ts, err := FromTime(t)
	if err != nil {
		return Timestamp{}, errors.Wrapf(err, "无法解析时间 %q", s)
	}
	return ts, nil
}

// FromTime 取 t 在其自身时区下的民用字段（丢弃亚秒与时区）。
// 调用方需要先把 t 转到期望的时区（例如 t.In(time.Local)）。
// 年份不在 1..9999 时返回 ErrMalformedInput（EXIF 只能表示四位年份）。
func FromTime(t time.Time) (Timestamp, error) {
	return NewTimestamp(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Time 把民用时间解释为 loc 中的瞬时值（loc 为 nil 时使用 time.Local）。
func (ts Timestamp) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(ts.year, time.Month(ts.month), ts.day, ts.hour, ts.minute, ts.second, 0, loc)
}

func (ts Timestamp) IsZero() bool { return ts == Timestamp{} }

// String 返回规范形式 "YYYY-MM-DD HH:MM:SS"。
func (ts Timestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", ts.year, ts.month, ts.day, ts.hour, ts.minute, ts.second)
}

// Exif 返回 EXIF 原生形式 "YYYY:MM:DD HH:MM:SS"。
func (ts Timestamp) Exif() string {
	return fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d", ts.year, ts.month, ts.day, ts.hour, ts.minute, ts.second)
}

func (ts Timestamp) Equal(o Timestamp) bool { return ts == o }

// MarshalText 让 Timestamp 在 report JSON 中以规范形式出现（零值输出空串）。
func (ts Timestamp) MarshalText() ([]byte, error) {
	if ts.IsZero() {
		return []byte{}, nil
	}
	return []byte(ts.String()), nil
}

func (ts *Timestamp) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*ts = Timestamp{}
		return nil
	}
	v, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*ts = v
	return nil
}

func daysIn(year, month int) int {
	// time.Date 会把溢出的日期归一化：下个月的第 0 天就是本月最后一天。
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func malformedf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedInput)
}
