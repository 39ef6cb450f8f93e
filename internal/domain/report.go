package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	// SinkStatus 描述单个落盘动作的结果。
	SinkWritten     = "written"
	SinkUnchanged   = "unchanged"
	SinkDisabled    = "disabled"
	SinkUnsupported = "unsupported" // 非 JPEG：整体跳过，不解析也不写入
	SinkPlanned     = "planned"     // dry-run：需要写入但未执行
	SinkFailed      = "failed"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Path   string `json:"path"`
	Mode   Mode   `json:"mode"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type ItemResult struct {
	File string `json:"file"`

	Source    Source    `json:"source"`
	Timestamp Timestamp `json:"timestamp"`

	Exif  string `json:"exif"`
	Mtime string `json:"mtime"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Attempts []AttemptResult `json:"attempts"`
}

// AttemptResult 是 Attempt 的可序列化形态。
type AttemptResult struct {
	Source  Source  `json:"source"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// AttemptResults 把内部尝试链路转换为 report 形态（错误只保留消息文本）。
func AttemptResults(attempts []Attempt) []AttemptResult {
	out := make([]AttemptResult, 0, len(attempts))
	for _, a := range attempts {
		r := AttemptResult{Source: a.Source, Outcome: a.Outcome}
		if a.Err != nil {
			r.Error = a.Err.Error()
		}
		out = append(out, r)
	}
	return out
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 按文件路径稳定排序
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].File < r.Items[j].File })

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性：nil 切片输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	a.Items = append([]ItemResult{}, r.Items...)
	for i := range a.Items {
		if a.Items[i].Attempts == nil {
			a.Items[i].Attempts = []AttemptResult{}
		}
	}
	return json.Marshal(a)
}
