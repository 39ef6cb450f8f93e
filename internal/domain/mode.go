package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Mode 是一次运行的解析模式；每次运行只有一个生效。
type Mode string

const (
	ModeExplicit Mode = "explicit"
	ModeJSON     Mode = "json"
	ModeFilename Mode = "filename"
	ModeMtime    Mode = "mtime"
	ModeAuto     Mode = "auto"
)

// ModeFlags 对应 CLI 的三个强制开关与显式日期。
type ModeFlags struct {
	Explicit bool
	JSON     bool
	Filename bool
	Mtime    bool
}

// SelectMode 按固定优先级选出唯一模式：explicit > json > filename > mtime > auto。
// 多个强制开关同时出现时不报错，按优先级取最具体的一个。
func SelectMode(f ModeFlags) Mode {
	switch {
	case f.Explicit:
		return ModeExplicit
	case f.JSON:
		return ModeJSON
	case f.Filename:
		return ModeFilename
	case f.Mtime:
		return ModeMtime
	default:
		return ModeAuto
	}
}

// ParseMode 解析配置文件中的 mode 字段（空串视为 auto）。
// explicit 不能通过配置文件选择：它只由 date 字段隐式产生。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeJSON, ModeFilename, ModeMtime:
		return m, nil
	default:
		return "", errors.Mark(errors.Newf("mode 只能是 auto|json|filename|mtime，实际是 %q", s), ErrInvalidArguments)
	}
}

// Source 标识最终采用的日期来源。
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceExif     Source = "exif"
	SourceJSON     Source = "json"
	SourceFilename Source = "filename"
	SourceMtime    Source = "mtime"
)

// Chain 返回某个模式下来源的尝试顺序（explicit 模式不查询任何来源）。
// mtime 总是最后一个：它是保证成功的兜底来源。
func (m Mode) Chain() []Source {
	switch m {
	case ModeJSON:
		return []Source{SourceJSON, SourceFilename, SourceMtime}
	case ModeFilename:
		return []Source{SourceFilename, SourceMtime}
	case ModeMtime:
		return []Source{SourceMtime}
	case ModeExplicit:
		return nil
	default:
		return []Source{SourceExif, SourceJSON, SourceFilename, SourceMtime}
	}
}
