// Package rerank 按评审结论调整 Plan 与排序参数，并执行唯一一次重排。
package rerank

import (
	"fmt"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/conv"
)

// Config 重排配置
type Config struct {
	// Epsilon 调整后权重和低于该值时保留原权重
	Epsilon float64

	// EnforceHybridForSearch / MinBehavioralWeight 与计划阶段一致，
	// 调整后仍保证 search 意图的行为权重下限
	EnforceHybridForSearch bool
	MinBehavioralWeight    float64
}

// DefaultConfig 返回默认重排配置。
func DefaultConfig() Config {
	return Config{Epsilon: 1e-6, EnforceHybridForSearch: true, MinBehavioralWeight: 0.20}
}

// ApplyWeightDeltas 把调整项中的权重增量加到 plan 上，各自限制在 [0,1] 后归一化，
// 返回新的 Plan，不修改输入。增量缺省为 0。
func ApplyWeightDeltas(cfg Config, intent core.Intent, plan core.Plan, adj core.Adjustments) core.Plan {
	db, ds := adj.BehavioralDelta(), adj.SemanticDelta()
	out := plan
	if db == 0 && ds == 0 {
		return out.WithTrace("rerank:no_weight_delta")
	}

	wb := conv.Clamp(plan.WeightBehavioral+db, 0, 1)
	ws := conv.Clamp(plan.WeightSemantic+ds, 0, 1)
	if plan.UseBehavioral && plan.UseSemantic && wb+ws < cfg.Epsilon {
		return out.WithTrace("rerank:weight_delta_zero_sum_kept_previous")
	}
	out.WeightBehavioral, out.WeightSemantic = wb, ws
	out = out.Normalize(cfg.Epsilon).WithTrace(fmt.Sprintf("rerank:weight_delta(behavioral=%+.2f,semantic=%+.2f)", db, ds))

	if cfg.EnforceHybridForSearch && intent == core.IntentSearch && out.UseBehavioral && out.UseSemantic &&
		out.WeightBehavioral < cfg.MinBehavioralWeight {
		out.WeightBehavioral = cfg.MinBehavioralWeight
		out.WeightSemantic = 1 - cfg.MinBehavioralWeight
		out = out.WithTrace(fmt.Sprintf("clamp:weight_behavioral->%.2f", cfg.MinBehavioralWeight))
	}
	return out
}
