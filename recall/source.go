package recall

import (
	"context"
	"math"

	"github.com/rushteam/agentrec/core"
)

// Source 是可被 Fanout 并发调用的检索源，统一行为检索与语义检索的调用方式。
type Source interface {
	Kind() core.SourceKind
	Retrieve(ctx context.Context, rctx *core.RecommendContext, k int) ([]core.Candidate, error)
}

// BehavioralSource 把 core.BehavioralRetriever 适配为 Source。
type BehavioralSource struct {
	Retriever core.BehavioralRetriever
}

func (s BehavioralSource) Kind() core.SourceKind { return core.SourceBehavioral }

func (s BehavioralSource) Retrieve(ctx context.Context, rctx *core.RecommendContext, k int) ([]core.Candidate, error) {
	if s.Retriever == nil || rctx.UserID == "" {
		return nil, nil
	}
	return s.Retriever.Recommend(ctx, rctx.UserID, k)
}

// SemanticSource 把 core.SemanticRetriever 适配为 Source，空查询不调用检索工具。
type SemanticSource struct {
	Retriever core.SemanticRetriever
}

func (s SemanticSource) Kind() core.SourceKind { return core.SourceSemantic }

func (s SemanticSource) Retrieve(ctx context.Context, rctx *core.RecommendContext, k int) ([]core.Candidate, error) {
	if s.Retriever == nil || !rctx.HasQuery() {
		return nil, nil
	}
	return s.Retriever.Search(ctx, rctx.Query, k)
}

// sanitize 丢弃负分、NaN/Inf 与重复 ID，并截断到 k 条。
func sanitize(in []core.Candidate, k int) []core.Candidate {
	out := make([]core.Candidate, 0, len(in))
	seen := make(map[int64]struct{}, len(in))
	for _, c := range in {
		if !(c.Score >= 0) || math.IsInf(c.Score, 0) {
			continue
		}
		if _, ok := seen[c.ItemID]; ok {
			continue
		}
		seen[c.ItemID] = struct{}{}
		out = append(out, c)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}
