package intent

import (
	"context"

	"github.com/rushteam/agentrec/pipeline"
)

// Node 是意图阶段的 pipeline.Node。
type Node struct {
	Resolver *Resolver
}

func (n *Node) Name() string          { return "intent.resolver" }
func (n *Node) Stage() pipeline.Stage { return pipeline.StageIntent }

func (n *Node) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	res := n.Resolver.Resolve(ctx, st.Context())
	return st.WithIntent(res), pipeline.Fields{
		"intent":              string(res.Intent),
		"confidence":          res.Confidence,
		"needs_clarification": res.NeedsClarification,
		"trace":               res.Trace,
	}
}
