package run

import (
	"time"

	"github.com/John-Robertt/photodate/internal/config"
	"github.com/John-Robertt/photodate/internal/domain"
)

// Observer 用于把“运行进度/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件在 Execute 的 goroutine 中按顺序触发
type Observer interface {
	// OnStart 在输入列表确定后调用；total 是将要处理的文件数。
	OnStart(eff config.EffectiveConfig, total int)
	// OnItemDone 在单个文件处理完成时调用（idx 从 1 开始）。
	OnItemDone(idx, total int, item domain.ItemResult, dur time.Duration)
	// OnFinish 在 report 定稿后调用。
	OnFinish(report domain.RunReport)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig, int)                   {}
func (nopObserver) OnItemDone(int, int, domain.ItemResult, time.Duration) {}
func (nopObserver) OnFinish(domain.RunReport)                             {}
