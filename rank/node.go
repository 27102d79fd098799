package rank

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/filter"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
)

// Node 是排序阶段的 pipeline.Node：融合候选，应用过滤器后截断。
type Node struct {
	ranker  Ranker
	filters filter.Chain
	logger  zerolog.Logger
}

// NodeOption Node 配置选项
type NodeOption func(*Node)

// WithFilters 设置截断前应用的过滤器（如黑名单）。
func WithFilters(filters ...filter.Filter) NodeOption {
	return func(n *Node) { n.filters = append(n.filters, filters...) }
}

func WithLogger(logger zerolog.Logger) NodeOption {
	return func(n *Node) { n.logger = logging.Component(logger, "rank") }
}

func NewNode(ranker Ranker, opts ...NodeOption) *Node {
	n := &Node{ranker: ranker, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) Name() string          { return n.ranker.Name() }
func (n *Node) Stage() pipeline.Stage { return pipeline.StageRank }

// Filters 返回排序阶段的过滤器，重排阶段复用。
func (n *Node) Filters() filter.Chain { return n.filters }

func (n *Node) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	scored := n.ranker.Score(Request{
		Behavioral: st.Candidates.Behavioral,
		Semantic:   st.Candidates.Semantic,
		Plan:       st.Plan,
	})
	kept, removed := n.filters.Apply(ctx, st.Context(), scored)
	items := truncate(kept, n.ranker.Limit())

	if len(items) == 0 {
		n.logger.Debug().Str("request_id", st.RequestID()).Msg("empty candidate pool")
	}
	return st.WithRecommendations(items), pipeline.Fields{
		"ranker":            n.ranker.Name(),
		"pool_size":         len(scored),
		"filtered":          removed,
		"returned":          len(items),
		"weight_behavioral": st.Plan.WeightBehavioral,
		"weight_semantic":   st.Plan.WeightSemantic,
		"top_ids":           TopIDs(items, 10),
	}
}

// TopIDs 返回前 n 个物品 ID。
func TopIDs(items []*core.Item, n int) []int64 {
	if n > len(items) {
		n = len(items)
	}
	ids := make([]int64, 0, n)
	for _, it := range items[:n] {
		ids = append(ids, it.ID)
	}
	return ids
}
