package core

import (
	"fmt"
	"math"
)

// Plan 决定启用哪些检索工具以及融合权重。
//
// 约束：
//   - 两个工具都启用时，两个权重之和为 1
//   - 只启用一个工具时，另一个权重为 0
//   - 不允许两个工具都不启用
//
// Plan 是值类型，重排时生成新的 Plan，不修改原值。
type Plan struct {
	UseBehavioral    bool     `json:"use_behavioral"`
	UseSemantic      bool     `json:"use_semantic"`
	WeightBehavioral float64  `json:"weight_behavioral"`
	WeightSemantic   float64  `json:"weight_semantic"`
	Trace            []string `json:"trace"`
}

// WeightSum 返回两个权重之和。
func (p Plan) WeightSum() float64 {
	return p.WeightBehavioral + p.WeightSemantic
}

// Normalize 按启用的工具归一化权重：
//   - 两个都启用：除以权重和，和低于 eps 时以 eps 为下限
//   - 只启用一个：该工具权重为 1，另一个为 0
//   - 都未启用：回退为只启用行为检索
func (p Plan) Normalize(eps float64) Plan {
	out := p.clone()
	switch {
	case out.UseBehavioral && out.UseSemantic:
		sum := math.Max(out.WeightSum(), eps)
		out.WeightBehavioral /= sum
		out.WeightSemantic /= sum
	case out.UseBehavioral:
		out.WeightBehavioral, out.WeightSemantic = 1, 0
	case out.UseSemantic:
		out.WeightBehavioral, out.WeightSemantic = 0, 1
	default:
		out.UseBehavioral = true
		out.WeightBehavioral, out.WeightSemantic = 1, 0
	}
	return out
}

// Validate 检查 Plan 约束，tol 为浮点容差。
func (p Plan) Validate(tol float64) error {
	if !p.UseBehavioral && !p.UseSemantic {
		return NewDomainError(ModulePlanner, ErrorCodeInvalidInput, "plan: no retrieval tool enabled")
	}
	for _, w := range []float64{p.WeightBehavioral, p.WeightSemantic} {
		if math.IsNaN(w) || w < -tol || w > 1+tol {
			return NewDomainError(ModulePlanner, ErrorCodeInvalidInput, fmt.Sprintf("plan: weight %v out of [0,1]", w))
		}
	}
	switch {
	case p.UseBehavioral && p.UseSemantic:
		if math.Abs(p.WeightSum()-1) > tol {
			return NewDomainError(ModulePlanner, ErrorCodeInvalidInput, fmt.Sprintf("plan: weights sum to %v", p.WeightSum()))
		}
	case p.UseBehavioral:
		if p.WeightSemantic != 0 {
			return NewDomainError(ModulePlanner, ErrorCodeInvalidInput, "plan: semantic weight must be 0 when semantic is disabled")
		}
	case p.UseSemantic:
		if p.WeightBehavioral != 0 {
			return NewDomainError(ModulePlanner, ErrorCodeInvalidInput, "plan: behavioral weight must be 0 when behavioral is disabled")
		}
	}
	return nil
}

// WithTrace 返回追加了 trace 的副本。
func (p Plan) WithTrace(entries ...string) Plan {
	out := p.clone()
	out.Trace = append(out.Trace, entries...)
	return out
}

func (p Plan) clone() Plan {
	out := p
	out.Trace = append([]string(nil), p.Trace...)
	return out
}
