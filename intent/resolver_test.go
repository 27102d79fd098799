package intent

import (
	"context"
	"testing"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/service"
)

func TestApply(t *testing.T) {
	cfg := DefaultConfig()
	base := core.NewRecommendContext("1", "")

	tests := []struct {
		name         string
		rctx         *core.RecommendContext
		advisory     core.ReasoningResult
		wantIntent   core.Intent
		wantConf     float64
		wantClarify  bool
		wantQuestion string
	}{
		{
			name:       "query forces search",
			rctx:       core.NewRecommendContext("1", "  space opera "),
			advisory:   core.ReasoningOK(map[string]any{"intent": "comfort", "confidence": 0.9}),
			wantIntent: core.IntentSearch,
			wantConf:   0.9,
		},
		{
			name:       "low novelty forces comfort",
			rctx:       base.WithNoveltyTolerance(0.1),
			advisory:   core.ReasoningOK(map[string]any{"intent": "explore", "confidence": 0.8}),
			wantIntent: core.IntentComfort,
			wantConf:   0.8,
		},
		{
			name:       "short time budget forces quick_watch",
			rctx:       base.WithAvailableMinutes(45),
			advisory:   core.ReasoningOK(map[string]any{"intent": "explore", "confidence": 0.8}),
			wantIntent: core.IntentQuickWatch,
			wantConf:   0.8,
		},
		{
			name:       "novelty wins over time budget",
			rctx:       base.WithNoveltyTolerance(0.2).WithAvailableMinutes(30),
			advisory:   core.ReasoningOK(map[string]any{"intent": "explore", "confidence": 0.8}),
			wantIntent: core.IntentComfort,
			wantConf:   0.8,
		},
		{
			name:       "advisory intent kept without overrides",
			rctx:       base.WithAvailableMinutes(120),
			advisory:   core.ReasoningOK(map[string]any{"intent": "comfort", "confidence": "0.7"}),
			wantIntent: core.IntentComfort,
			wantConf:   0.7,
		},
		{
			name:       "unknown advisory intent becomes explore",
			rctx:       base,
			advisory:   core.ReasoningOK(map[string]any{"intent": "binge", "confidence": 2.0}),
			wantIntent: core.IntentExplore,
			wantConf:   1.0,
		},
		{
			name:       "advisory failure uses defaults",
			rctx:       base,
			advisory:   core.ReasoningFailed("call_failed:timeout"),
			wantIntent: core.IntentExplore,
			wantConf:   0.6,
		},
		{
			name:         "low confidence asks default question",
			rctx:         base,
			advisory:     core.ReasoningOK(map[string]any{"intent": "explore", "confidence": 0.3}),
			wantIntent:   core.IntentExplore,
			wantConf:     0.3,
			wantClarify:  true,
			wantQuestion: cfg.DefaultQuestion,
		},
		{
			name: "advisory question kept",
			rctx: base,
			advisory: core.ReasoningOK(map[string]any{
				"intent": "explore", "confidence": 0.9,
				"needs_clarification": true, "clarification_question": "Funny or scary?",
			}),
			wantIntent:   core.IntentExplore,
			wantConf:     0.9,
			wantClarify:  true,
			wantQuestion: "Funny or scary?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(cfg, tt.rctx, tt.advisory)
			if got.Intent != tt.wantIntent {
				t.Fatalf("Intent = %v, want %v (trace %v)", got.Intent, tt.wantIntent, got.Trace)
			}
			if got.Confidence != tt.wantConf {
				t.Fatalf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.NeedsClarification != tt.wantClarify || got.ClarificationQuestion != tt.wantQuestion {
				t.Fatalf("clarification = %v %q, want %v %q", got.NeedsClarification, got.ClarificationQuestion, tt.wantClarify, tt.wantQuestion)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	svc := service.NewScripted().OnData(core.TaskIntent, map[string]any{
		"intent": "explore", "confidence": 0.8, "trace": []any{"browsing"},
	})
	r := NewResolver(svc, DefaultConfig())

	got := r.Resolve(context.Background(), core.NewRecommendContext("7", ""))
	if got.Intent != core.IntentExplore || got.Trace[0] != "browsing" {
		t.Fatalf("Resolve() = %+v", got)
	}
	if svc.Calls(core.TaskIntent) != 1 {
		t.Fatalf("intent endpoint called %d times", svc.Calls(core.TaskIntent))
	}

	got = NewResolver(nil, DefaultConfig()).Resolve(context.Background(), core.NewRecommendContext("7", "heist"))
	if got.Intent != core.IntentSearch {
		t.Fatalf("Resolve() without reasoning = %v", got.Intent)
	}
}
