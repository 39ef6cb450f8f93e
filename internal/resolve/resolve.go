package resolve

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/John-Robertt/photodate/internal/domain"
)

// Logger 是 Resolver 需要的最小日志接口；*zap.SugaredLogger 满足它。
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// Resolver 按模式对应的来源链为单个文件求出唯一的拍摄时间。
type Resolver struct {
	reg Registry
	log Logger
}

// New 创建 Resolver；log 为 nil 时不输出日志。
func New(reg Registry, log Logger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{reg: reg, log: log}
}

// Resolve 是单遍状态机：NotStarted -> Resolved | Unresolved。
//
// - explicit 非空：直接 Resolved（source=explicit），不查询任何来源
// - 否则按 mode.Chain() 依次尝试；第一个 found 的来源胜出
// - malformed/failed 记 warning 后视为未找到，继续下一个来源
// - 链路耗尽（只可能是 mtime 也失败）：Unresolved，Err 为最后一个错误
func (r *Resolver) Resolve(path string, explicit *domain.Timestamp, mode domain.Mode) domain.Resolution {
	if explicit != nil && !explicit.IsZero() {
		r.log.Infow("使用显式日期", "file", path, "date", explicit.String())
		return domain.Resolution{
			State:     domain.StateResolved,
			Timestamp: *explicit,
			Source:    domain.SourceExplicit,
			Attempts:  []domain.Attempt{{Source: domain.SourceExplicit, Outcome: domain.OutcomeFound}},
		}
	}
	if mode == domain.ModeExplicit {
		err := errors.Mark(errors.New("explicit 模式缺少日期"), domain.ErrInvalidArguments)
		return domain.Resolution{State: domain.StateUnresolved, Err: err}
	}

	res := domain.Resolution{State: domain.StateNotStarted}
	var lastErr error
	for _, src := range mode.Chain() {
		p, ok := r.reg.Get(src)
		if !ok {
			err := errors.Newf("来源未注册：%q", src)
			res.Attempts = append(res.Attempts, domain.Attempt{Source: src, Outcome: domain.OutcomeFailed, Err: err})
			r.log.Warnw("来源不可用", "file", path, "source", src, "error", err)
			lastErr = err
			continue
		}

		ts, found, err := p.Read(path)
		outcome := classify(found, err)
		res.Attempts = append(res.Attempts, domain.Attempt{Source: src, Outcome: outcome, Err: err})

		switch outcome {
		case domain.OutcomeFound:
			r.log.Infow("找到日期", "file", path, "source", src, "date", ts.String())
			res.State = domain.StateResolved
			res.Timestamp = ts
			res.Source = src
			return res
		case domain.OutcomeNotFound:
			if err != nil {
				r.log.Warnw("来源无日期", "file", path, "source", src, "error", err)
			} else {
				r.log.Infow("来源无日期", "file", path, "source", src)
			}
		case domain.OutcomeMalformed:
			r.log.Warnw("来源日期格式错误，按未找到处理", "file", path, "source", src, "error", err)
			lastErr = err
		default:
			r.log.Warnw("读取来源失败，按未找到处理", "file", path, "source", src, "error", err)
			lastErr = err
		}
	}

	res.State = domain.StateUnresolved
	res.Err = lastErr
	if res.Err == nil {
		res.Err = errors.Mark(errors.Newf("%q 没有任何可用日期", path), domain.ErrNotFound)
	}
	r.log.Errorw("无法确定日期", "file", path, "mode", mode, "error", res.Err)
	return res
}

func classify(found bool, err error) domain.Outcome {
	switch {
	case err == nil && found:
		return domain.OutcomeFound
	case err == nil:
		return domain.OutcomeNotFound
	case errors.Is(err, domain.ErrMalformedInput):
		return domain.OutcomeMalformed
	case errors.Is(err, domain.ErrNotFound):
		return domain.OutcomeNotFound
	default:
		return domain.OutcomeFailed
	}
}
