package domain

import "github.com/cockroachdb/errors"

// 错误分类（通过 errors.Mark 附加，errors.Is 判断）。
//
// 约束：
// - ErrNotFound 不是失败：来源缺失属于预期情况，解析器会继续尝试下一个来源
// - ErrMalformedInput 记录日志后按 NotFound 处理
// - ErrIOFailure 导致该文件失败，但批处理继续
// - ErrInvalidArguments 只出现在 CLI/配置阶段，必须在触碰任何文件之前退出
var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedInput   = errors.New("malformed input")
	ErrIOFailure        = errors.New("io failure")
	ErrInvalidArguments = errors.New("invalid arguments")
)

const (
	ErrCodeNotFound         = "not_found"
	ErrCodeMalformedInput   = "malformed_input"
	ErrCodeIOFailed         = "io_failed"
	ErrCodeExifWriteFailed  = "exif_write_failed"
	ErrCodeMtimeWriteFailed = "mtime_write_failed"
	ErrCodeInvalidArguments = "invalid_arguments"
)

// MarkIO 把 err 标记为 IOFailure（nil 原样返回）。
func MarkIO(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIOFailure)
}

// MarkMalformed 把 err 标记为 MalformedInput（nil 原样返回）。
func MarkMalformed(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrMalformedInput)
}

// ErrorCode 把错误映射为 report 中的 error_code；无法归类时按 io_failed 处理。
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArguments):
		return ErrCodeInvalidArguments
	case errors.Is(err, ErrMalformedInput):
		return ErrCodeMalformedInput
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeIOFailed
	}
}
