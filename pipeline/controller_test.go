package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/agentrec/core"
)

// stubNode 记录调用次数，并按 fn 修改 State。
type stubNode struct {
	name  string
	stage Stage
	calls int
	fn    func(ctx context.Context, st State) State
}

func (n *stubNode) Name() string { return n.name }
func (n *stubNode) Stage() Stage { return n.stage }

func (n *stubNode) Process(ctx context.Context, st State) (State, Fields) {
	n.calls++
	if n.fn != nil {
		st = n.fn(ctx, st)
	}
	return st, Fields{"calls": n.calls}
}

func stubNodes(overrides map[Stage]func(context.Context, State) State) map[Stage]*stubNode {
	out := make(map[Stage]*stubNode, len(Stages))
	for _, s := range Stages {
		out[s] = &stubNode{name: "stub." + string(s), stage: s, fn: overrides[s]}
	}
	return out
}

func nodeList(m map[Stage]*stubNode) []Node {
	out := make([]Node, 0, len(m))
	for _, s := range Stages {
		out = append(out, m[s])
	}
	return out
}

func stages(trace []TraceEvent) []Stage {
	out := make([]Stage, 0, len(trace))
	for _, e := range trace {
		out = append(out, e.Stage)
	}
	return out
}

func equalStages(a, b []Stage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestController_RerankAtMostOnce(t *testing.T) {
	// 评审总是要求重排，状态机也只进入一次 Rerank
	alwaysRerank := func(_ context.Context, st State) State {
		return st.WithVerdict(core.Verdict{NeedsRerank: true})
	}
	nodes := stubNodes(map[Stage]func(context.Context, State) State{StageCritique: alwaysRerank})
	c, err := NewController(nodeList(nodes), WithRequestIDFunc(func() string { return "req" }))
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	res, err := c.Run(context.Background(), core.NewRecommendContext("1", "q"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []Stage{StageIntent, StagePlan, StageRetrieve, StageRank, StageCritique, StageRerank, StageExplain}
	if got := stages(res.Trace); !equalStages(got, want) {
		t.Fatalf("trace stages = %v, want %v", got, want)
	}
	if nodes[StageRerank].calls != 1 || nodes[StageCritique].calls != 1 {
		t.Fatalf("rerank calls = %d critique calls = %d, want 1/1", nodes[StageRerank].calls, nodes[StageCritique].calls)
	}
	if res.RequestID != "req" {
		t.Fatalf("RequestID = %q, want req", res.RequestID)
	}
	for i, e := range res.Trace {
		if e.Seq != i+1 {
			t.Fatalf("trace[%d].Seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestController_NoRerank(t *testing.T) {
	nodes := stubNodes(nil)
	c, err := NewController(nodeList(nodes))
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Run(context.Background(), core.NewRecommendContext("1", ""))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []Stage{StageIntent, StagePlan, StageRetrieve, StageRank, StageCritique, StageExplain}
	if got := stages(res.Trace); !equalStages(got, want) {
		t.Fatalf("trace stages = %v, want %v", got, want)
	}
	if nodes[StageRerank].calls != 0 {
		t.Fatalf("rerank calls = %d, want 0", nodes[StageRerank].calls)
	}
}

func TestController_EmptyPoolReachesExplain(t *testing.T) {
	nodes := stubNodes(map[Stage]func(context.Context, State) State{
		StageRank: func(_ context.Context, st State) State { return st.WithRecommendations(nil) },
	})
	c, _ := NewController(nodeList(nodes))
	res, err := c.Run(context.Background(), core.NewRecommendContext("", ""))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Recommendations == nil || len(res.Recommendations) != 0 {
		t.Fatalf("Recommendations = %v, want empty non-nil", res.Recommendations)
	}
	if nodes[StageExplain].calls != 1 {
		t.Fatal("explain stage was not reached")
	}
	if len(res.Explanation.Bullets) != core.ExplanationBullets {
		t.Fatalf("Bullets = %v, want %d", res.Explanation.Bullets, core.ExplanationBullets)
	}
}

func TestController_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	nodes := stubNodes(map[Stage]func(context.Context, State) State{
		StageRetrieve: func(_ context.Context, st State) State {
			cancel()
			return st
		},
	})
	c, _ := NewController(nodeList(nodes))
	res, err := c.Run(ctx, core.NewRecommendContext("1", "q"))
	if err == nil || res != nil {
		t.Fatalf("Run() = %v, %v, want nil result and context error", res, err)
	}
	if nodes[StageRank].calls != 0 {
		t.Fatal("stages after cancellation must not run")
	}
}

func TestController_DeadlineKeepsRankedList(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	nodes := stubNodes(map[Stage]func(context.Context, State) State{
		StageRank: func(_ context.Context, st State) State {
			return st.WithRecommendations([]*core.Item{core.NewItem(7), core.NewItem(3)})
		},
		// 建议调用一直等到截止时间，然后按默认值降级
		StageCritique: func(ctx context.Context, st State) State {
			<-ctx.Done()
			return st.WithVerdict(core.Verdict{NeedsRerank: true})
		},
	})
	c, _ := NewController(nodeList(nodes))

	res, err := c.Run(ctx, core.NewRecommendContext("1", "q"))
	if err != nil {
		t.Fatalf("Run() error = %v, want result after deadline", err)
	}
	if len(res.Recommendations) != 2 || res.Recommendations[0].ID != 7 {
		t.Fatalf("Recommendations = %v, want ranked list [7 3]", res.Recommendations)
	}
	want := []Stage{StageIntent, StagePlan, StageRetrieve, StageRank, StageCritique, StageRerank, StageExplain}
	if got := stages(res.Trace); !equalStages(got, want) {
		t.Fatalf("trace stages = %v, want %v", got, want)
	}
	if nodes[StageExplain].calls != 1 {
		t.Fatalf("explain calls = %d, want 1", nodes[StageExplain].calls)
	}
	for _, e := range res.Trace[:5] {
		if _, ok := e.Fields["deadline_exceeded"]; ok {
			t.Fatalf("stage %s ran before the deadline but is marked", e.Stage)
		}
	}
	for _, e := range res.Trace[5:] {
		if e.Fields["deadline_exceeded"] != true {
			t.Fatalf("stage %s fields = %v, want deadline_exceeded", e.Stage, e.Fields)
		}
	}
}

func TestController_NodesCannotRewriteTrace(t *testing.T) {
	nodes := stubNodes(map[Stage]func(context.Context, State) State{
		StagePlan: func(_ context.Context, st State) State {
			return NewState("forged", nil)
		},
	})
	c, _ := NewController(nodeList(nodes), WithRequestIDFunc(func() string { return "req" }))
	res, err := c.Run(context.Background(), core.NewRecommendContext("1", "q"))
	if err != nil {
		t.Fatal(err)
	}
	if res.RequestID != "req" || len(res.Trace) != 6 || res.Trace[0].Stage != StageIntent {
		t.Fatalf("result = %+v, trace must be append-only", res)
	}
}

func TestNewController_Errors(t *testing.T) {
	nodes := stubNodes(nil)

	missing := nodeList(nodes)[:len(Stages)-1]
	if _, err := NewController(missing); !core.IsInvalidInput(err) {
		t.Fatalf("NewController(missing) error = %v, want invalid input", err)
	}

	dup := append(nodeList(nodes), &stubNode{name: "other", stage: StageRank})
	if _, err := NewController(dup); !core.IsInvalidInput(err) {
		t.Fatalf("NewController(dup) error = %v, want invalid input", err)
	}

	c, _ := NewController(nodeList(nodes))
	if _, err := c.Run(context.Background(), nil); !core.IsInvalidInput(err) {
		t.Fatalf("Run(nil) error = %v, want invalid input", err)
	}
}

func TestNext(t *testing.T) {
	rerank := State{Verdict: core.Verdict{NeedsRerank: true}}
	reranked := rerank
	reranked.reranks = 1

	tests := []struct {
		name string
		from Stage
		st   State
		want Stage
	}{
		{"intent", StageIntent, State{}, StagePlan},
		{"plan", StagePlan, State{}, StageRetrieve},
		{"retrieve", StageRetrieve, State{}, StageRank},
		{"rank", StageRank, State{}, StageCritique},
		{"critique ok", StageCritique, State{}, StageExplain},
		{"critique rerank", StageCritique, rerank, StageRerank},
		{"critique after rerank", StageCritique, reranked, StageExplain},
		{"rerank", StageRerank, rerank, StageExplain},
		{"explain", StageExplain, State{}, StageDone},
		{"done", StageDone, State{}, StageDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Next(tt.from, tt.st); got != tt.want {
				t.Fatalf("Next(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}
}

func TestState_Immutable(t *testing.T) {
	base := NewState("r", core.NewRecommendContext("1", ""))
	a := base.appendTrace(StageIntent, "n", nil)
	b := a.appendTrace(StagePlan, "n", nil)
	c := a.appendTrace(StagePlan, "m", nil)

	if len(base.Trace()) != 0 || len(a.Trace()) != 1 {
		t.Fatal("appendTrace must not modify the receiver")
	}
	if b.Trace()[1].Node != "n" || c.Trace()[1].Node != "m" {
		t.Fatal("sibling states must not share trace storage")
	}

	items := []*core.Item{core.NewItem(1)}
	s := base.WithRecommendations(items)
	items[0] = core.NewItem(2)
	if s.Recommendations[0].ID != 1 {
		t.Fatal("WithRecommendations must copy the slice")
	}
}
