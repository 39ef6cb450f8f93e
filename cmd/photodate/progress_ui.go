package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/John-Robertt/photodate/internal/app/run"
	"github.com/John-Robertt/photodate/internal/config"
	"github.com/John-Robertt/photodate/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出（目录模式）。
//
// 所有内容写到 stderr，不污染 stdout 的 report；失败明细由 emitReport 负责，这里只给计数。
type progressUI struct {
	w io.Writer

	// newBar 可替换，测试中用于关闭真实进度条。
	newBar func(w io.Writer, total int) (*pterm.ProgressbarPrinter, error)

	mu        sync.Mutex
	bar       *pterm.ProgressbarPrinter
	startedAt time.Time

	total int
	done  int
	ok    int
	fail  int
	skip  int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w, newBar: startBar}
}

func startBar(w io.Writer, total int) (*pterm.ProgressbarPrinter, error) {
	return pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("photodate").
		WithWriter(w).
		WithRemoveWhenDone(true).
		Start()
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = time.Now()
	p.total = total

	mode := "apply"
	if eff.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(p.w, "[%s] photodate (%s)\n", p.startedAt.Format("15:04:05"), mode)
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  mode: %s\n", eff.Mode)
	if eff.Explicit != nil {
		fmt.Fprintf(p.w, "  date: %s\n", eff.Explicit.String())
	}
	fmt.Fprintf(p.w, "  exif: %s\n", onOff(!eff.NoExif))
	fmt.Fprintf(p.w, "  files: %d\n", total)

	if total == 0 || p.newBar == nil {
		return
	}
	bar, err := p.newBar(p.w, total)
	if err != nil {
		fmt.Fprintf(p.w, "进度条初始化失败：%v\n", err)
		return
	}
	p.bar = bar
}

func (p *progressUI) OnItemDone(idx, total int, item domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	switch item.Status {
	case domain.StatusProcessed:
		p.ok++
	case domain.StatusFailed:
		p.fail++
	case domain.StatusSkipped:
		p.skip++
	}

	if p.bar != nil {
		p.bar.UpdateTitle(truncate(item.File, 40))
		p.bar.Increment()
	}
}

func (p *progressUI) OnFinish(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}

	elapsed := time.Duration(0)
	if !p.startedAt.IsZero() {
		elapsed = time.Since(p.startedAt)
	}
	line := fmt.Sprintf("done=%d/%d ok=%d skip=%d fail=%d elapsed=%s",
		p.done, p.total, p.ok, p.skip, p.fail, formatShortDuration(elapsed),
	)
	if p.fail > 0 {
		fmt.Fprint(p.w, pterm.Warning.Sprintln(line))
		return
	}
	fmt.Fprint(p.w, pterm.Success.Sprintln(line))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
