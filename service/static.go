package service

import (
	"context"
	"sync"

	"github.com/rushteam/agentrec/core"
)

// Disabled 是不调用外部服务的推理服务，总是返回失败结果，
// 各阶段因此全部走确定性默认值。
type Disabled struct{}

func (Disabled) Generate(context.Context, *core.ReasoningRequest) core.ReasoningResult {
	return core.ReasoningFailed("reasoning_disabled")
}

// Scripted 按任务返回预设结果，用于测试与离线回放。
// 同一任务的结果依次返回，用完后重复最后一个；未配置的任务返回失败。
type Scripted struct {
	mu      sync.Mutex
	results map[core.ReasoningTask][]core.ReasoningResult
	calls   map[core.ReasoningTask]int
}

func NewScripted() *Scripted {
	return &Scripted{
		results: make(map[core.ReasoningTask][]core.ReasoningResult),
		calls:   make(map[core.ReasoningTask]int),
	}
}

// On 为任务追加预设结果。
func (s *Scripted) On(task core.ReasoningTask, results ...core.ReasoningResult) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[task] = append(s.results[task], results...)
	return s
}

// OnData 为任务追加一个成功结果。
func (s *Scripted) OnData(task core.ReasoningTask, data map[string]any) *Scripted {
	return s.On(task, core.ReasoningOK(data))
}

func (s *Scripted) Generate(_ context.Context, req *core.ReasoningRequest) core.ReasoningResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.calls[req.Task]
	s.calls[req.Task] = n + 1
	list := s.results[req.Task]
	if len(list) == 0 {
		return core.ReasoningFailed("no_scripted_result")
	}
	if n >= len(list) {
		n = len(list) - 1
	}
	return list[n]
}

// Calls 返回任务被调用的次数。
func (s *Scripted) Calls(task core.ReasoningTask) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[task]
}

var (
	_ core.ReasoningService = Disabled{}
	_ core.ReasoningService = (*Scripted)(nil)
)
