package core

import "github.com/rushteam/agentrec/pkg/conv"

// 调整项名称
const (
	AdjustNoveltyLambda          = "novelty_lambda"
	AdjustDiversityBoost         = "diversity_boost"
	AdjustExcludeGenres          = "exclude_genres"
	AdjustWeightBehavioralDelta  = "weight_behavioral_delta"
	AdjustWeightSemanticDelta    = "weight_semantic_delta"
	adjustWeightBehavioralLegacy = "weight_cf_delta"
)

// Adjustments 是 Critique 产生的调整项：名称 → 值。
type Adjustments map[string]any

// Float 读取数值调整项。
func (a Adjustments) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	return conv.ToFloat64(v)
}

// Strings 读取字符串列表调整项。
func (a Adjustments) Strings(key string) []string {
	return conv.ToStringSlice(a[key])
}

// BehavioralDelta 返回行为权重增量，兼容旧键名 weight_cf_delta，缺省为 0。
func (a Adjustments) BehavioralDelta() float64 {
	if v, ok := a.Float(AdjustWeightBehavioralDelta); ok {
		return v
	}
	if v, ok := a.Float(adjustWeightBehavioralLegacy); ok {
		return v
	}
	return 0
}

// SemanticDelta 返回语义权重增量，缺省为 0。
func (a Adjustments) SemanticDelta() float64 {
	v, _ := a.Float(AdjustWeightSemanticDelta)
	return v
}

// Clone 浅拷贝。
func (a Adjustments) Clone() Adjustments {
	out := make(Adjustments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Verdict 是 Critique 阶段的结论。
type Verdict struct {
	NeedsRerank bool        `json:"needs_rerank"`
	Adjustments Adjustments `json:"adjustments"`
	Trace       []string    `json:"trace"`
}

// Explanation 是面向用户的推荐说明，Bullets 固定 3 条。
type Explanation struct {
	OneLiner string   `json:"one_liner"`
	Bullets  []string `json:"bullets"`
}

// ExplanationBullets 是说明中的要点数量。
const ExplanationBullets = 3

// EmptyExplanation 返回降级时使用的空说明。
func EmptyExplanation() Explanation {
	return Explanation{Bullets: make([]string, ExplanationBullets)}
}
