package pipeline

import "github.com/rushteam/agentrec/core"

// Candidates 是各检索工具返回的原始候选。
type Candidates struct {
	Behavioral []core.Candidate `json:"behavioral"`
	Semantic   []core.Candidate `json:"semantic"`
}

// TraceEvent 是 trace 日志中的一条记录。
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Stage  Stage  `json:"stage"`
	Node   string `json:"node"`
	Fields Fields `json:"fields"`
}

// State 是贯穿各阶段的请求状态。
//
// State 按值传递，With* 方法返回新值而不修改接收者；
// trace 只能由 Controller 追加，不会被截断或重排。
type State struct {
	requestID string
	rctx      *core.RecommendContext
	trace     []TraceEvent
	reranks   int

	Intent          core.IntentResult
	Plan            core.Plan
	Candidates      Candidates
	Recommendations []*core.Item
	Verdict         core.Verdict
	Explanation     core.Explanation
}

// NewState 创建请求初始状态。
func NewState(requestID string, rctx *core.RecommendContext) State {
	return State{
		requestID:   requestID,
		rctx:        rctx,
		Explanation: core.EmptyExplanation(),
	}
}

func (s State) RequestID() string { return s.requestID }

// Context 返回只读的请求上下文。
func (s State) Context() *core.RecommendContext { return s.rctx }

// Reranks 返回已执行的重排次数。
func (s State) Reranks() int { return s.reranks }

// Trace 返回 trace 日志的副本。
func (s State) Trace() []TraceEvent {
	return append([]TraceEvent(nil), s.trace...)
}

func (s State) WithIntent(r core.IntentResult) State {
	s.Intent = r
	return s
}

func (s State) WithPlan(p core.Plan) State {
	s.Plan = p
	return s
}

func (s State) WithCandidates(c Candidates) State {
	s.Candidates = c
	return s
}

// WithRecommendations 整体替换推荐序列。
func (s State) WithRecommendations(items []*core.Item) State {
	s.Recommendations = append([]*core.Item(nil), items...)
	return s
}

func (s State) WithVerdict(v core.Verdict) State {
	s.Verdict = v
	return s
}

func (s State) WithExplanation(e core.Explanation) State {
	s.Explanation = e
	return s
}

// appendTrace 追加一条 trace，底层数组总是新分配，旧 State 的 trace 不受影响。
func (s State) appendTrace(stage Stage, node string, fields Fields) State {
	next := make([]TraceEvent, len(s.trace), len(s.trace)+1)
	copy(next, s.trace)
	s.trace = append(next, TraceEvent{
		Seq:    len(s.trace) + 1,
		Stage:  stage,
		Node:   node,
		Fields: fields,
	})
	return s
}

// Result 是一次请求的最终输出。
type Result struct {
	RequestID       string            `json:"request_id"`
	Intent          core.IntentResult `json:"intent"`
	Plan            core.Plan         `json:"plan"`
	Recommendations []*core.Item      `json:"recommendations"`
	Verdict         core.Verdict      `json:"verdict"`
	Explanation     core.Explanation  `json:"explanation"`
	Trace           []TraceEvent      `json:"trace"`
}

// Result 生成最终输出。
func (s State) Result() *Result {
	recs := s.Recommendations
	if recs == nil {
		recs = []*core.Item{}
	}
	return &Result{
		RequestID:       s.requestID,
		Intent:          s.Intent,
		Plan:            s.Plan,
		Recommendations: recs,
		Verdict:         s.Verdict,
		Explanation:     s.Explanation,
		Trace:           s.Trace(),
	}
}
