// Package planner 决定启用哪些检索工具以及融合权重。
//
// 推理服务给出建议 Plan，确定性规则总是覆盖建议；建议缺失或格式错误时
// 由默认值兜底，不返回错误，每次纠正都会写入 trace。
package planner

import (
	"fmt"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/conv"
)

// Config 权重规则配置
type Config struct {
	// EnforceHybridForSearch 为 true 时 search 意图强制启用行为检索
	EnforceHybridForSearch bool

	// MinBehavioralWeight 混合检索下行为权重的下限
	MinBehavioralWeight float64

	// DefaultBehavioralWeight / DefaultSemanticWeight 两个工具都启用时的默认权重
	DefaultBehavioralWeight float64
	DefaultSemanticWeight   float64

	// Epsilon 归一化时权重和的下限
	Epsilon float64
}

// DefaultConfig 返回默认规则配置。
func DefaultConfig() Config {
	return Config{
		EnforceHybridForSearch:  true,
		MinBehavioralWeight:     0.20,
		DefaultBehavioralWeight: 0.4,
		DefaultSemanticWeight:   0.6,
		Epsilon:                 1e-6,
	}
}

// Resolve 把建议 Plan 与确定性规则合并为合法的 Plan，是纯函数。
//
// 规则依次为：
//  1. 有查询时强制启用语义检索
//  2. search 意图且开启混合约束时强制启用行为检索
//  3. 从建议中读取权重，缺失或非法时按启用的工具取默认值
//  4. 混合约束下行为权重不低于下限，语义权重取 1 - 行为权重
//  5. 两个都启用时归一化
//  6. 只启用一个时其权重为 1
//  7. 建议只用语义而规则 2 要求行为检索时，行为权重取下限（归一化之前）
//  8. 两个都不启用时回退：无查询只用行为检索，有查询用默认混合权重
func Resolve(cfg Config, intent core.Intent, rctx *core.RecommendContext, advisory core.ReasoningResult) core.Plan {
	var trace []string
	if v, ok := advisory.Get("trace"); ok {
		trace = append(trace, conv.ToStringSlice(v)...)
	}
	trace = append(trace, advisory.Trace...)
	if !advisory.OK {
		trace = append(trace, "advisory_plan_unavailable")
	}

	hasQuery := rctx.HasQuery()
	hybridRequired := cfg.EnforceHybridForSearch && intent == core.IntentSearch

	useBehavioral, ok := boolKey(advisory, "use_behavioral", "use_cf")
	if !ok {
		useBehavioral = true
	}
	useSemantic, ok := boolKey(advisory, "use_semantic")
	if !ok {
		useSemantic = hasQuery
	}
	proposedSemanticOnly := useSemantic && !useBehavioral

	// 1
	if hasQuery && !useSemantic {
		useSemantic = true
		trace = append(trace, "hard_rule:query_forces_semantic")
	}
	// 2
	if hybridRequired && !useBehavioral {
		useBehavioral = true
		trace = append(trace, "hard_rule:search_forces_behavioral")
	}
	// 8
	if !useBehavioral && !useSemantic {
		useBehavioral = true
		useSemantic = hasQuery
		trace = append(trace, "hard_rule:no_tool_enabled_defaulted")
	}

	// 3
	wb, wbOK := weightKey(advisory, "weight_behavioral", "weight_cf")
	ws, wsOK := weightKey(advisory, "weight_semantic")
	if useBehavioral && useSemantic {
		if !wbOK {
			wb = cfg.DefaultBehavioralWeight
		}
		if !wsOK {
			ws = cfg.DefaultSemanticWeight
		}
		if !wbOK || !wsOK {
			trace = append(trace, "default_weights_applied")
		}
	}

	// 7
	if hybridRequired && proposedSemanticOnly {
		wb = cfg.MinBehavioralWeight
		trace = append(trace, fmt.Sprintf("corrected:semantic_only_to_hybrid(weight_behavioral=%.2f)", wb))
	}

	// 4
	if useBehavioral && useSemantic && hybridRequired {
		if wb < cfg.MinBehavioralWeight {
			trace = append(trace, fmt.Sprintf("clamp:weight_behavioral %.2f->%.2f", wb, cfg.MinBehavioralWeight))
			wb = cfg.MinBehavioralWeight
		}
		ws = 1 - wb
	}

	// 5 / 6
	if useBehavioral && useSemantic && wb+ws < cfg.Epsilon {
		wb, ws = cfg.DefaultBehavioralWeight, cfg.DefaultSemanticWeight
		trace = append(trace, "zero_weight_sum_defaulted")
	}
	plan := core.Plan{
		UseBehavioral:    useBehavioral,
		UseSemantic:      useSemantic,
		WeightBehavioral: wb,
		WeightSemantic:   ws,
		Trace:            trace,
	}.Normalize(cfg.Epsilon)

	return plan.WithTrace("plan_resolved")
}

// boolKey 依次尝试 keys，返回第一个可解析的布尔值。
func boolKey(r core.ReasoningResult, keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := r.Get(k); ok {
			if b, ok := conv.ToBool(v); ok {
				return b, true
			}
		}
	}
	return false, false
}

// weightKey 依次尝试 keys，返回第一个 [0,1] 内的数值。
func weightKey(r core.ReasoningResult, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := r.Get(k); ok {
			if f, ok := conv.ToFloat64(v); ok && f >= 0 && f <= 1 {
				return f, true
			}
		}
	}
	return 0, false
}
