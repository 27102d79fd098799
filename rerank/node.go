package rerank

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/filter"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/rank"
)

// Node 是重排阶段的 pipeline.Node，按评审调整项重新执行一次融合排序：
//  1. 权重增量作用于 Plan（ApplyWeightDeltas）
//  2. novelty_lambda 覆盖新颖度系数
//  3. exclude_genres 在截断前过滤
//  4. diversity_boost 在截断前做类型冗余惩罚
//  5. 截断到上限
//
// 重排结果完全替换上一轮的推荐列表。
type Node struct {
	ranker  rank.Ranker
	filters filter.Chain
	cfg     Config
	logger  zerolog.Logger
}

// Option Node 配置选项
type Option func(*Node)

// WithFilters 设置与排序阶段相同的基础过滤器。
func WithFilters(chain filter.Chain) Option {
	return func(n *Node) { n.filters = chain }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(n *Node) { n.logger = logging.Component(logger, "rerank") }
}

func NewNode(ranker rank.Ranker, cfg Config, opts ...Option) *Node {
	n := &Node{ranker: ranker, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) Name() string          { return "rerank.adjusted" }
func (n *Node) Stage() pipeline.Stage { return pipeline.StageRerank }

func (n *Node) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	adj := st.Verdict.Adjustments
	plan := ApplyWeightDeltas(n.cfg, st.Intent.Intent, st.Plan, adj)

	req := rank.Request{
		Behavioral: st.Candidates.Behavioral,
		Semantic:   st.Candidates.Semantic,
		Plan:       plan,
	}
	fields := pipeline.Fields{}
	if lambda, ok := adj.Float(core.AdjustNoveltyLambda); ok {
		req.NoveltyLambda = &lambda
		fields["novelty_lambda"] = lambda
	}
	scored := n.ranker.Score(req)

	chain := append(filter.Chain{}, n.filters...)
	if genres := adj.Strings(core.AdjustExcludeGenres); len(genres) > 0 {
		chain = append(chain, filter.NewGenreExclude(genres))
		fields["exclude_genres"] = genres
	}
	kept, removed := chain.Apply(ctx, st.Context(), scored)

	limit := n.ranker.Limit()
	if boost, ok := adj.Float(core.AdjustDiversityBoost); ok && boost > 0 {
		kept = Diversity{Boost: boost}.Apply(kept, limit)
		fields["diversity_boost"] = boost
	}
	items := TopN{N: limit}.Apply(kept)

	n.logger.Debug().
		Str("request_id", st.RequestID()).
		Int("returned", len(items)).
		Interface("adjustments", adj).
		Msg("rerank applied")

	fields["weight_behavioral"] = plan.WeightBehavioral
	fields["weight_semantic"] = plan.WeightSemantic
	fields["plan_trace"] = plan.Trace
	fields["filtered"] = removed
	fields["returned"] = len(items)
	fields["top_ids"] = rank.TopIDs(items, 10)
	return st.WithPlan(plan).WithRecommendations(items), fields
}
