package resolve

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/John-Robertt/photodate/internal/domain"
	"github.com/John-Robertt/photodate/internal/filename"
	"github.com/John-Robertt/photodate/internal/infra/fsx"
	"github.com/John-Robertt/photodate/internal/infra/imgx"
	"github.com/John-Robertt/photodate/internal/sidecar"
)

// Probe 是一个日期来源：给定文件路径，尝试给出拍摄时间。
//
// 约束：
// - 来源缺失返回 found=false, err=nil（或标记为 domain.ErrNotFound 的错误）
// - Read 不得保留 path 对应文件的任何句柄
type Probe interface {
	Source() domain.Source
	Read(path string) (domain.Timestamp, bool, error)
}

// ProbeFunc 把普通函数适配为 Probe。
type ProbeFunc struct {
	Src domain.Source
	Fn  func(path string) (domain.Timestamp, bool, error)
}

func (p ProbeFunc) Source() domain.Source { return p.Src }

func (p ProbeFunc) Read(path string) (domain.Timestamp, bool, error) { return p.Fn(path) }

// Registry 是来源的只读注册表（按 Source 索引）。
type Registry struct {
	bySource map[domain.Source]Probe
}

func NewRegistry(probes ...Probe) (Registry, error) {
	bySource := make(map[domain.Source]Probe, len(probes))
	for _, p := range probes {
		if p == nil {
			return Registry{}, errors.New("probe 不能为空")
		}
		src := normalizeSource(p.Source())
		if src == "" {
			return Registry{}, errors.New("probe.Source 不能为空")
		}
		if _, ok := bySource[src]; ok {
			return Registry{}, errors.Newf("重复的来源：%q", src)
		}
		bySource[src] = p
	}
	return Registry{bySource: bySource}, nil
}

// Get 按来源名查找（大小写与首尾空白不敏感，与注册时一致）。
func (r Registry) Get(src domain.Source) (Probe, bool) {
	if r.bySource == nil {
		return nil, false
	}
	p, ok := r.bySource[normalizeSource(src)]
	return p, ok
}

func normalizeSource(src domain.Source) domain.Source {
	return domain.Source(strings.ToLower(strings.TrimSpace(string(src))))
}

// DefaultProbes 返回四个内置来源；loc 决定 epoch/mtime 转民用时间的时区（nil 表示 time.Local）。
func DefaultProbes(loc *time.Location) []Probe {
	if loc == nil {
		loc = time.Local
	}
	return []Probe{
		ProbeFunc{Src: domain.SourceExif, Fn: imgx.ReadDate},
		ProbeFunc{Src: domain.SourceJSON, Fn: sidecar.Reader{Location: loc}.Read},
		ProbeFunc{Src: domain.SourceFilename, Fn: filename.Match},
		ProbeFunc{Src: domain.SourceMtime, Fn: func(path string) (domain.Timestamp, bool, error) {
			t, err := fsx.ModTime(path)
			if err != nil {
				return domain.Timestamp{}, false, domain.MarkIO(err, "读取 %q 的修改时间失败", path)
			}
			ts, err := domain.FromTime(t.In(loc))
			if err != nil {
				return domain.Timestamp{}, false, errors.Wrapf(err, "%q 的修改时间无法表示", path)
			}
			return ts, true, nil
		}},
	}
}

// DefaultRegistry 是 NewRegistry(DefaultProbes(loc)...) 的简写。
func DefaultRegistry(loc *time.Location) Registry {
	reg, err := NewRegistry(DefaultProbes(loc)...)
	if err != nil {
		// 内置来源固定且不重复。
		panic(err)
	}
	return reg
}
