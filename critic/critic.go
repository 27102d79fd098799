package critic

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/conv"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// Critic 是护栏评审器。
type Critic struct {
	cfg       Config
	reasoning core.ReasoningService
	rules     *RuleSet
	stats     core.ItemStats
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// Option Critic 配置选项
type Option func(*Critic)

// WithRules 设置 CEL 规则集。
func WithRules(rs *RuleSet) Option {
	return func(c *Critic) { c.rules = rs }
}

// WithStats 设置热度来源；未设置时使用排序结果中的 baseline_popularity。
func WithStats(s core.ItemStats) Option {
	return func(c *Critic) { c.stats = s }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Critic) { c.logger = logging.Component(logger, "critic") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Critic) { c.metrics = m }
}

func New(reasoning core.ReasoningService, cfg Config, opts ...Option) *Critic {
	c := &Critic{cfg: cfg, reasoning: reasoning, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const systemPrompt = `You are a recommendation critic for a movie recommender.
Return ONLY valid JSON.
Do NOT include commentary.
Do NOT reveal hidden reasoning.`

// Critique 评审 items 并给出结论。
//
// 合并顺序为：推理建议 → 规则 → 内置检查，内置检查的结果不会被覆盖或减弱。
// 列表为空时跳过规则与内置检查。
func (c *Critic) Critique(ctx context.Context, intent core.Intent, rctx *core.RecommendContext, items []*core.Item) (core.Verdict, Observation) {
	obs := Observe(items, c.cfg.TopK, c.stats)

	var hard []Layer
	if len(items) == 0 {
		hard = append(hard, Layer{Name: "guardrails", Trace: []string{"no_recommendations"}})
	} else {
		hard = append(hard, c.rules.Evaluate(obs.Vars(intent, rctx.Query)), Check(c.cfg, rctx, obs))
	}
	deterministic := Merge(hard...)

	advisory := c.advise(ctx, intent, rctx, items, deterministic)
	layers := append([]Layer{advisory}, hard...)
	v := Merge(layers...)
	v.Trace = append(v.Trace, "critic_merged")
	return v, obs
}

// advise 调用推理服务，结果经过 Sanitize。失败时返回空 Layer。
func (c *Critic) advise(ctx context.Context, intent core.Intent, rctx *core.RecommendContext, items []*core.Item, hint core.Verdict) Layer {
	layer := Layer{Name: "advisory", Adjustments: core.Adjustments{}}
	res := core.ReasoningFailed("reasoning_unavailable")
	if c.reasoning != nil {
		res = c.reasoning.Generate(ctx, &core.ReasoningRequest{
			Task:         core.TaskCritique,
			SystemPrompt: systemPrompt,
			UserPrompt:   c.userPrompt(intent, rctx, items),
			SchemaHint: map[string]any{
				"needs_rerank": hint.NeedsRerank,
				"adjustments":  map[string]any(hint.Adjustments),
				"trace":        hint.Trace,
			},
			ExpectedKeys: []string{"needs_rerank"},
		})
	}
	if !res.OK {
		c.metrics.IncAdvisoryFailure(string(core.TaskCritique))
		c.logger.Warn().Strs("trace", res.Trace).Msg("critique advisory failed, using guardrails only")
		layer.Trace = append(layer.Trace, res.Trace...)
		layer.Trace = append(layer.Trace, "advisory_critique_unavailable")
		return layer
	}

	if v, ok := res.Get("needs_rerank"); ok {
		layer.NeedsRerank, _ = conv.ToBool(v)
	}
	if v, ok := res.Get("trace"); ok {
		layer.Trace = append(layer.Trace, conv.ToStringSlice(v)...)
	}
	if v, ok := res.Get("adjustments"); ok {
		if m, isMap := v.(map[string]any); isMap {
			adj, dropped := Sanitize(m, c.cfg.NoveltyCeiling)
			layer.Adjustments = adj
			layer.Trace = append(layer.Trace, dropped...)
		}
	}
	layer.Trace = append(layer.Trace, res.Trace...)
	return layer
}

type promptItem struct {
	ID         int64    `json:"item_id"`
	Title      string   `json:"title"`
	Genres     []string `json:"genres"`
	Score      float64  `json:"score"`
	Popularity float64  `json:"baseline_popularity"`
	Advantage  float64  `json:"advantage"`
}

func (c *Critic) userPrompt(intent core.Intent, rctx *core.RecommendContext, items []*core.Item) string {
	top := items
	if len(top) > 10 {
		top = top[:10]
	}
	list := make([]promptItem, 0, len(top))
	for _, it := range top {
		list = append(list, promptItem{
			ID:         it.ID,
			Title:      it.Title,
			Genres:     it.Genres,
			Score:      it.Score,
			Popularity: it.Signals.BaselinePopularity,
			Advantage:  it.Signals.Advantage,
		})
	}
	ctxJSON, _ := json.Marshal(rctx.Snapshot())
	recsJSON, _ := json.MarshalIndent(list, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\nUser context: %s\n\n", intent, ctxJSON)
	b.WriteString("You will be given the top recommendations with optional signals.\n")
	b.WriteString("Assess:\n")
	b.WriteString("- Does the list satisfy the query and constraints?\n")
	b.WriteString("- Is novelty too low (too popular)?\n")
	b.WriteString("- Is the list too narrow in genres?\n")
	b.WriteString("- Are advantage signals reflected in top-ranked items?\n\n")
	b.WriteString("Return JSON with exactly these keys:\n")
	b.WriteString(`{"needs_rerank": boolean, "adjustments": object, "trace": array of strings}` + "\n\n")
	fmt.Fprintf(&b, "Top recommendations:\n%s\n", recsJSON)
	return b.String()
}

// Node 是评审阶段的 pipeline.Node。
type Node struct {
	Critic *Critic
}

func (n *Node) Name() string          { return "critic.guardrails" }
func (n *Node) Stage() pipeline.Stage { return pipeline.StageCritique }

func (n *Node) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	v, obs := n.Critic.Critique(ctx, st.Intent.Intent, st.Context(), st.Recommendations)
	return st.WithVerdict(v), pipeline.Fields{
		"needs_rerank":    v.NeedsRerank,
		"adjustments":     v.Adjustments,
		"mean_popularity": obs.MeanPopularity,
		"unique_genres":   obs.UniqueGenres,
		"top_k":           obs.TopK,
		"trace":           v.Trace,
	}
}
