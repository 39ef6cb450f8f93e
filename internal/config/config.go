package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/John-Robertt/photodate/internal/domain"
)

const (
	// ErrCodeNotFound 表示未给出 path 且 cwd 下没有 photodate.json（或 --config 指向的文件不存在）。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示未给出 path 且配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
	// ErrCodePathNotFound 表示最终的 path 不存在或不可访问。
	ErrCodePathNotFound = "path_not_found"
)

const (
	// FileName 是自动发现的配置文件名。
	FileName = "photodate.json"
	// EnvPrefix 是环境变量前缀：PHOTODATE_MODE、PHOTODATE_DRY_RUN ...
	EnvPrefix = "PHOTODATE"
)

// DefaultExtensions 是目录模式下处理的扩展名（小写，带点）。
var DefaultExtensions = []string{".jpg", ".jpeg"}

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 dry_run=true。
type CLIArgs struct {
	Path       string
	ConfigFile string

	Date  string
	Force domain.ModeFlags // 只使用 JSON/Filename/Mtime；Explicit 由 Date 推出

	DryRun    bool
	DryRunSet bool

	NoExif    bool
	NoExifSet bool
}

// FileConfig 对应 photodate.json（也接受 viper 支持的其他格式）。
type FileConfig struct {
	Path       string   `mapstructure:"path"`
	Mode       string   `mapstructure:"mode"`
	Date       string   `mapstructure:"date"`
	DryRun     bool     `mapstructure:"dry_run"`
	NoExif     bool     `mapstructure:"no_exif"`
	Extensions []string `mapstructure:"extensions"`
	SkipNames  []string `mapstructure:"skip_names"`
}

// EffectiveConfig 是合并并规范化后的最终配置（执行层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path  string // clean + absolute
	IsDir bool

	Mode     domain.Mode
	Explicit *domain.Timestamp // Mode==explicit 时非空

	DryRun bool
	NoExif bool

	Extensions []string
	SkipNames  []string // 在内置的系统文件名之外额外跳过的文件名

	// ConfigFile 是实际读取的配置文件；没有读取任何文件时为空。
	ConfigFile string
	// Warnings 是不致命但应告知用户的合并结果（例如显式日期覆盖了强制开关）。
	Warnings []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodePathNotFound:
		return fmt.Sprintf("%s：路径 %q 不存在或不可访问", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// SetDefaults 设置所有键的默认值（AutomaticEnv 只对已知键生效，因此每个键都要有默认值）。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("path", "")
	v.SetDefault("mode", string(domain.ModeAuto))
	v.SetDefault("date", "")
	v.SetDefault("dry_run", false)
	v.SetDefault("no_exif", false)
	v.SetDefault("extensions", DefaultExtensions)
	v.SetDefault("skip_names", []string{})
}

// LoadEffective 发现并读取配置文件，然后与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) --config 给出文件：必须存在
// 2) CLI 提供 path：尝试读取 <dir>/photodate.json（可选；dir 为 path 本身或单文件的父目录）
// 3) CLI 未提供 path：必须读取 <cwd>/photodate.json，且其中必须包含 path
//
// 覆盖优先级（固定）：CLI > PHOTODATE_* 环境变量 > 配置文件 > 默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	v := newViper()

	var (
		cfgPath  string
		required bool
		cliPath  string
	)
	if strings.TrimSpace(cli.Path) != "" {
		cliPath = absCleanFrom(cwdAbs, cli.Path)
	}

	switch {
	case strings.TrimSpace(cli.ConfigFile) != "":
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		required = true
	case cliPath != "":
		cfgPath = filepath.Join(configDir(cliPath), FileName)
	default:
		cfgPath = filepath.Join(cwdAbs, FileName)
		required = true
	}

	used, err := readInto(v, cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !used && required {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// path：CLI > 配置（相对路径以配置文件所在目录为基准）
	absPath := cliPath
	if absPath == "" {
		if strings.TrimSpace(fc.Path) == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
		}
		absPath = absCleanFrom(filepath.Dir(cfgPath), fc.Path)
	}

	eff, err := merge(absPath, cli, fc, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if used {
		eff.ConfigFile = cfgPath
	}
	return eff, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// readInto 把 path 读入 v；文件不存在返回 used=false 且不报错。
func readInto(v *viper.Viper, path string) (used bool, err error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.IsDir() {
		return false, errors.Newf("%q 是目录", path)
	}
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return true, err
	}
	return true, nil
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	fi, err := os.Stat(absPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodePathNotFound, Path: absPath, Err: err}
	}

	eff := EffectiveConfig{
		Path:       absPath,
		IsDir:      fi.IsDir(),
		DryRun:     fc.DryRun,
		NoExif:     fc.NoExif,
		SkipNames: normalizeNames(fc.SkipNames),
	}
	exts, ignored := normalizeExtensions(fc.Extensions)
	eff.Extensions = exts
	if len(ignored) > 0 {
		eff.Warnings = append(eff.Warnings, fmt.Sprintf("只支持 JPEG，忽略扩展名 %s", strings.Join(ignored, ", ")))
	}
	if cli.DryRunSet {
		eff.DryRun = cli.DryRun
	}
	if cli.NoExifSet {
		eff.NoExif = cli.NoExif
	}

	// mode：CLI 强制开关 > 配置 mode > auto
	fileMode, err := domain.ParseMode(fc.Mode)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	forced := cli.Force.JSON || cli.Force.Filename || cli.Force.Mtime
	mode := fileMode
	if forced {
		mode = domain.SelectMode(domain.ModeFlags{JSON: cli.Force.JSON, Filename: cli.Force.Filename, Mtime: cli.Force.Mtime})
	}

	// date：CLI > 配置；给出即进入 explicit 模式
	date := strings.TrimSpace(fc.Date)
	fromCLI := strings.TrimSpace(cli.Date) != ""
	if fromCLI {
		date = strings.TrimSpace(cli.Date)
	}
	if date != "" {
		ts, err := domain.ParseTimestamp(date)
		if err != nil {
			if fromCLI {
				return EffectiveConfig{}, errors.Mark(errors.Wrapf(err, "--date %q 必须是 YYYY-MM-DD HH:MM:SS", date), domain.ErrInvalidArguments)
			}
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errors.Wrap(err, "date 必须是 YYYY-MM-DD HH:MM:SS")}
		}
		if mode != domain.ModeAuto {
			eff.Warnings = append(eff.Warnings, fmt.Sprintf("显式日期优先，忽略 %s 模式", mode))
		}
		eff.Explicit = &ts
		mode = domain.SelectMode(domain.ModeFlags{Explicit: true})
	}
	eff.Mode = mode

	return eff, nil
}

// configDir 是自动发现配置文件的目录：path 是目录则为自身，否则为父目录。
func configDir(p string) string {
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return p
	}
	return filepath.Dir(p)
}

// normalizeExtensions 规范化扩展名（小写、带点、去重），并剔除非 JPEG 扩展名。
// 结果为空时回退到 DefaultExtensions。
func normalizeExtensions(in []string) (exts, ignored []string) {
	exts = make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		if !isJPEGExt(e) {
			ignored = append(ignored, e)
			continue
		}
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		exts = append([]string(nil), DefaultExtensions...)
	}
	return exts, ignored
}

func isJPEGExt(e string) bool {
	for _, d := range DefaultExtensions {
		if e == d {
			return true
		}
	}
	return false
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
