package core

import "context"

// ReasoningTask 标识推理调用的用途。
type ReasoningTask string

const (
	TaskIntent   ReasoningTask = "intent"
	TaskPlan     ReasoningTask = "plan"
	TaskCritique ReasoningTask = "critique"
	TaskExplain  ReasoningTask = "explain"
)

// ReasoningRequest 是一次推理调用的输入。
type ReasoningRequest struct {
	Task         ReasoningTask
	SystemPrompt string
	UserPrompt   string

	// SchemaHint 是期望输出的示例，修复调用时一并提交
	SchemaHint map[string]any

	// ExpectedKeys 是输出必须包含的键，缺失视为格式错误
	ExpectedKeys []string
}

// ReasoningResult 是推理服务的返回：OK 时 Data 已通过键校验；
// 失败时 OK=false 且 Data 为空 map。
type ReasoningResult struct {
	OK    bool
	Data  map[string]any
	Trace []string
}

// ReasoningOK 构造成功结果。
func ReasoningOK(data map[string]any, trace ...string) ReasoningResult {
	return ReasoningResult{OK: true, Data: data, Trace: trace}
}

// ReasoningFailed 构造失败结果。
func ReasoningFailed(trace ...string) ReasoningResult {
	return ReasoningResult{OK: false, Data: map[string]any{}, Trace: trace}
}

// Get 读取字段；失败结果永远返回 (nil, false)。
func (r ReasoningResult) Get(key string) (any, bool) {
	if !r.OK || r.Data == nil {
		return nil, false
	}
	v, ok := r.Data[key]
	return v, ok
}

// ReasoningService 是推理服务的领域接口（意图、计划、评审、解释）。
//
// 实现必须遵守有界修复协议：一次初始调用，最多若干次修复调用，
// 全部失败时返回 ReasoningFailed，不返回 error。
type ReasoningService interface {
	Generate(ctx context.Context, req *ReasoningRequest) ReasoningResult
}
