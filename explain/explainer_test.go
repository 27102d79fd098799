package explain

import (
	"context"
	"strings"
	"testing"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/service"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		data        map[string]any
		wantOne     string
		wantBullets []string
	}{
		{
			name:        "exact",
			data:        map[string]any{"one_liner": " Quiet picks. ", "bullets": []any{"a", "b", "c"}},
			wantOne:     "Quiet picks.",
			wantBullets: []string{"a", "b", "c"},
		},
		{
			name:        "padded",
			data:        map[string]any{"one_liner": "x", "bullets": []any{"a"}},
			wantOne:     "x",
			wantBullets: []string{"a", "", ""},
		},
		{
			name:        "truncated and non-strings dropped",
			data:        map[string]any{"bullets": []any{1, "a", nil, "b", "c", "d"}},
			wantBullets: []string{"a", "b", "c"},
		},
		{
			name:        "wrong types",
			data:        map[string]any{"one_liner": 42, "bullets": "not a list"},
			wantBullets: []string{"", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.data)
			if got.OneLiner != tt.wantOne {
				t.Fatalf("OneLiner = %q, want %q", got.OneLiner, tt.wantOne)
			}
			if strings.Join(got.Bullets, "|") != strings.Join(tt.wantBullets, "|") || len(got.Bullets) != core.ExplanationBullets {
				t.Fatalf("Bullets = %q, want %q", got.Bullets, tt.wantBullets)
			}
		})
	}
}

func items() []*core.Item {
	a := core.NewItem(1)
	a.Title, a.Genres = "Before Sunrise (1995)", []string{"Drama", "Romance"}
	b := core.NewItem(2)
	b.Title = "Once (2007)"
	return []*core.Item{a, b}
}

func TestExplain(t *testing.T) {
	reasoning := service.NewScripted().OnData(core.TaskExplain, map[string]any{
		"one_liner": "Grounded romances.",
		"bullets":   []any{"Before Sunrise fits.", "Once fits."},
	})
	e := New(reasoning)
	got, _ := e.Explain(context.Background(), core.IntentSearch, core.NewRecommendContext("1", "real romance"), items())
	if got.OneLiner != "Grounded romances." || len(got.Bullets) != 3 || got.Bullets[2] != "" {
		t.Fatalf("Explain() = %+v", got)
	}
}

func TestExplain_Degrades(t *testing.T) {
	tests := []struct {
		name      string
		reasoning core.ReasoningService
		items     []*core.Item
		wantTrace string
	}{
		{name: "reasoning failed", reasoning: service.Disabled{}, items: items(), wantTrace: "explanation_unavailable"},
		{name: "empty list", reasoning: service.NewScripted(), items: nil, wantTrace: "no_recommendations"},
		{name: "no service", reasoning: nil, items: items(), wantTrace: "reasoning_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, trace := New(tt.reasoning).Explain(context.Background(), core.IntentExplore, core.NewRecommendContext("1", ""), tt.items)
			if got.OneLiner != "" || len(got.Bullets) != 3 {
				t.Fatalf("Explain() = %+v, want empty explanation", got)
			}
			if trace[len(trace)-1] != tt.wantTrace {
				t.Fatalf("trace = %v, want last %q", trace, tt.wantTrace)
			}
		})
	}
}

func TestUserPrompt_GroundedOnTopThree(t *testing.T) {
	list := items()
	for i := int64(3); i <= 5; i++ {
		it := core.NewItem(i)
		it.Title = "Extra " + string(rune('A'+i))
		list = append(list, it)
	}
	p := userPrompt(core.IntentSearch, core.NewRecommendContext("1", "real romance"), list)
	if !strings.Contains(p, "Before Sunrise (1995)") || !strings.Contains(p, "real romance") {
		t.Fatalf("prompt missing grounding:\n%s", p)
	}
	if strings.Contains(p, "Extra E") {
		t.Fatalf("prompt should only include the top %d items:\n%s", GroundingItems, p)
	}
}

func TestNode_Process(t *testing.T) {
	n := &Node{Explainer: New(service.Disabled{})}
	st := pipeline.NewState("req", core.NewRecommendContext("1", ""))
	got, fields := n.Process(context.Background(), st)
	if len(got.Explanation.Bullets) != 3 || fields["bullets"] != 3 {
		t.Fatalf("Process() explanation = %+v", got.Explanation)
	}
}
