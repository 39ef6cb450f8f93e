package domain

// ResolveState 是单个文件解析过程的状态：NotStarted -> Resolved | Unresolved（终态）。
type ResolveState string

const (
	StateNotStarted ResolveState = "not_started"
	StateResolved   ResolveState = "resolved"
	StateUnresolved ResolveState = "unresolved"
)

// Outcome 是单次来源尝试的结果。
type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeMalformed Outcome = "malformed"
	OutcomeFailed    Outcome = "failed"
)

// Attempt 记录一次来源尝试（用于解释为什么回退到了后面的来源）。
type Attempt struct {
	Source  Source
	Outcome Outcome
	Err     error
}

// Resolution 是 Resolver 对一个文件的最终结论。
//
// 约束：State==StateResolved 时 Timestamp 非零且 Source 非空；
// State==StateUnresolved 时 Err 说明原因。
type Resolution struct {
	State     ResolveState
	Timestamp Timestamp
	Source    Source
	Attempts  []Attempt
	Err       error
}

func (r Resolution) Resolved() bool { return r.State == StateResolved }
