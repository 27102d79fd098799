package planner

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/service"
)

const tol = 1e-9

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	noQuery := core.NewRecommendContext("1", "")
	withQuery := core.NewRecommendContext("1", "slow burn thriller")

	tests := []struct {
		name     string
		intent   core.Intent
		rctx     *core.RecommendContext
		advisory core.ReasoningResult
		wantB    bool
		wantS    bool
		wantWB   float64
		wantWS   float64
	}{
		{
			name:     "query forces semantic on",
			intent:   core.IntentExplore,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": true, "use_semantic": false}),
			wantB:    true, wantS: true, wantWB: 0.4, wantWS: 0.6,
		},
		{
			name:     "search clamps behavioral to minimum",
			intent:   core.IntentSearch,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": true, "use_semantic": true, "weight_behavioral": 0.05, "weight_semantic": 0.95}),
			wantB:    true, wantS: true, wantWB: 0.2, wantWS: 0.8,
		},
		{
			name:     "semantic-only proposal corrected for search",
			intent:   core.IntentSearch,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": false, "use_semantic": true, "weight_behavioral": 0, "weight_semantic": 1}),
			wantB:    true, wantS: true, wantWB: 0.2, wantWS: 0.8,
		},
		{
			name:     "advisory weights renormalized",
			intent:   core.IntentExplore,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": true, "use_semantic": true, "weight_behavioral": 0.3, "weight_semantic": 0.3}),
			wantB:    true, wantS: true, wantWB: 0.5, wantWS: 0.5,
		},
		{
			name:     "invalid weights fall back to defaults",
			intent:   core.IntentExplore,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": true, "use_semantic": true, "weight_behavioral": 7, "weight_semantic": "lots"}),
			wantB:    true, wantS: true, wantWB: 0.4, wantWS: 0.6,
		},
		{
			name:     "zero weight sum falls back to defaults",
			intent:   core.IntentExplore,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": true, "use_semantic": true, "weight_behavioral": 0, "weight_semantic": 0}),
			wantB:    true, wantS: true, wantWB: 0.4, wantWS: 0.6,
		},
		{
			name:     "single tool gets full weight",
			intent:   core.IntentExplore,
			rctx:     noQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": true, "use_semantic": false, "weight_behavioral": 0.3}),
			wantB:    true, wantS: false, wantWB: 1, wantWS: 0,
		},
		{
			name:     "both disabled without query falls back to behavioral",
			intent:   core.IntentExplore,
			rctx:     noQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": false, "use_semantic": false}),
			wantB:    true, wantS: false, wantWB: 1, wantWS: 0,
		},
		{
			name:     "semantic-only allowed outside search",
			intent:   core.IntentExplore,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_behavioral": false, "use_semantic": true}),
			wantB:    false, wantS: true, wantWB: 0, wantWS: 1,
		},
		{
			name:     "legacy keys accepted",
			intent:   core.IntentExplore,
			rctx:     withQuery,
			advisory: core.ReasoningOK(map[string]any{"use_cf": true, "use_semantic": true, "weight_cf": 0.7, "weight_semantic": 0.3}),
			wantB:    true, wantS: true, wantWB: 0.7, wantWS: 0.3,
		},
		{
			name:     "advisory failure without query",
			intent:   core.IntentExplore,
			rctx:     noQuery,
			advisory: core.ReasoningFailed("reasoning_exhausted"),
			wantB:    true, wantS: false, wantWB: 1, wantWS: 0,
		},
		{
			name:     "advisory failure with search query",
			intent:   core.IntentSearch,
			rctx:     withQuery,
			advisory: core.ReasoningFailed("reasoning_exhausted"),
			wantB:    true, wantS: true, wantWB: 0.4, wantWS: 0.6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(cfg, tt.intent, tt.rctx, tt.advisory)
			if got.UseBehavioral != tt.wantB || got.UseSemantic != tt.wantS {
				t.Fatalf("flags = %v/%v, want %v/%v (trace %v)", got.UseBehavioral, got.UseSemantic, tt.wantB, tt.wantS, got.Trace)
			}
			if math.Abs(got.WeightBehavioral-tt.wantWB) > tol || math.Abs(got.WeightSemantic-tt.wantWS) > tol {
				t.Fatalf("weights = %v/%v, want %v/%v (trace %v)", got.WeightBehavioral, got.WeightSemantic, tt.wantWB, tt.wantWS, got.Trace)
			}
			if err := got.Validate(tol); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestResolve_CorrectionIsTraced(t *testing.T) {
	got := Resolve(DefaultConfig(), core.IntentSearch, core.NewRecommendContext("1", "noir"),
		core.ReasoningOK(map[string]any{"use_behavioral": false, "use_semantic": true}))
	found := false
	for _, e := range got.Trace {
		if e == "corrected:semantic_only_to_hybrid(weight_behavioral=0.20)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("trace %v should record the correction", got.Trace)
	}
}

// 推理服务总是失败时，各种请求组合下的 Plan 仍满足全部约束。
func TestResolve_InvariantsUnderExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	intents := []core.Intent{core.IntentSearch, core.IntentExplore, core.IntentComfort, core.IntentQuickWatch}
	queries := []string{"", "   ", "quiet romance"}
	p := New(service.Disabled{}, cfg)

	for _, in := range intents {
		for _, q := range queries {
			rctx := core.NewRecommendContext("42", q)
			plan := p.Plan(context.Background(), core.IntentResult{Intent: in}, rctx)
			if err := plan.Validate(tol); err != nil {
				t.Fatalf("intent=%s query=%q: %v", in, q, err)
			}
			if rctx.HasQuery() && !plan.UseSemantic {
				t.Fatalf("intent=%s query=%q: semantic must be on", in, q)
			}
			if in == core.IntentSearch && (!plan.UseBehavioral || plan.WeightBehavioral < cfg.MinBehavioralWeight) {
				t.Fatalf("intent=%s query=%q: behavioral must be on with weight >= %v, got %+v", in, q, cfg.MinBehavioralWeight, plan)
			}
		}
	}
}

// 任意建议权重下，混合 Plan 的权重和为 1。
func TestResolve_WeightsSumToOne(t *testing.T) {
	cfg := DefaultConfig()
	rctx := core.NewRecommendContext("1", "q")
	for _, in := range []core.Intent{core.IntentSearch, core.IntentExplore} {
		for wb := 0.0; wb <= 1.0; wb += 0.1 {
			for ws := 0.0; ws <= 1.0; ws += 0.1 {
				plan := Resolve(cfg, in, rctx, core.ReasoningOK(map[string]any{
					"use_behavioral": true, "use_semantic": true, "weight_behavioral": wb, "weight_semantic": ws,
				}))
				if math.Abs(plan.WeightSum()-1) > tol {
					t.Fatalf("intent=%s wb=%v ws=%v: sum = %v", in, wb, ws, plan.WeightSum())
				}
			}
		}
	}
}
