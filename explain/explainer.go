// Package explain 生成面向用户的推荐说明。
package explain

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// GroundingItems 说明只基于前几条推荐的标题与类型
const GroundingItems = 3

// Explainer 调用推理服务生成说明，失败时返回空说明。
type Explainer struct {
	reasoning core.ReasoningService
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// Option Explainer 配置选项
type Option func(*Explainer)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Explainer) { e.logger = logging.Component(logger, "explain") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Explainer) { e.metrics = m }
}

func New(reasoning core.ReasoningService, opts ...Option) *Explainer {
	e := &Explainer{reasoning: reasoning, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const systemPrompt = `You are a movie recommendation explainer.

Explain WHY these recommendations fit the user's request, without exaggeration
and without forcing relevance.

RULES:
- Speak directly to the user ("you").
- Be honest about fit quality; describe partial matches as tonal or adjacent.
- Never invent plot details or specific scenes.
- Do NOT mention algorithms, models, embeddings, rankings, or scores.
- Output ONLY valid JSON (no markdown, no commentary).`

var schemaHint = map[string]any{
	"one_liner": "These picks lean toward grounded, character-driven stories.",
	"bullets": []string{
		"Title A (1998) is a strong match for ...",
		"Title B (2003) has elements of ...",
		"Title C (2010) is more of a tonal match ...",
	},
}

// Explain 返回说明与 trace。items 为空时不调用推理服务。
func (e *Explainer) Explain(ctx context.Context, intent core.Intent, rctx *core.RecommendContext, items []*core.Item) (core.Explanation, []string) {
	if len(items) == 0 {
		return core.EmptyExplanation(), []string{"no_recommendations"}
	}
	if e.reasoning == nil {
		return core.EmptyExplanation(), []string{"reasoning_unavailable"}
	}

	res := e.reasoning.Generate(ctx, &core.ReasoningRequest{
		Task:         core.TaskExplain,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt(intent, rctx, items),
		SchemaHint:   schemaHint,
		ExpectedKeys: []string{"one_liner", "bullets"},
	})
	if !res.OK {
		e.metrics.IncAdvisoryFailure(string(core.TaskExplain))
		e.logger.Warn().Strs("trace", res.Trace).Msg("explanation unavailable")
		return core.EmptyExplanation(), append(res.Trace, "explanation_unavailable")
	}
	return Normalize(res.Data), res.Trace
}

// Normalize 把推理结果整理为固定 3 条要点的说明：
// 非字符串要点被丢弃，不足补空串，多余截断。
func Normalize(data map[string]any) core.Explanation {
	out := core.EmptyExplanation()
	if s, ok := data["one_liner"].(string); ok {
		out.OneLiner = strings.TrimSpace(s)
	}
	list, _ := data["bullets"].([]any)
	i := 0
	for _, b := range list {
		if i == core.ExplanationBullets {
			break
		}
		if s, ok := b.(string); ok {
			out.Bullets[i] = strings.TrimSpace(s)
			i++
		}
	}
	return out
}

type groundingItem struct {
	Title  string   `json:"title"`
	Genres []string `json:"genres"`
}

func userPrompt(intent core.Intent, rctx *core.RecommendContext, items []*core.Item) string {
	top := items
	if len(top) > GroundingItems {
		top = top[:GroundingItems]
	}
	grounding := make([]groundingItem, 0, len(top))
	for _, it := range top {
		grounding = append(grounding, groundingItem{Title: it.Title, Genres: it.Genres})
	}
	ctxJSON, _ := json.MarshalIndent(rctx.Snapshot(), "", "  ")
	recsJSON, _ := json.MarshalIndent(grounding, "", "  ")

	return fmt.Sprintf(`User intent:
%s

User context (JSON):
%s

Top recommendations (title + genres only):
%s

WRITE:
- one_liner: ONE sentence summarizing why these picks were chosen, referencing the user's constraints.
- bullets: EXACTLY 3 bullets, each mentioning a specific title and how it aligns with the user's constraints.

RETURN ONLY THIS JSON SCHEMA:
{"one_liner": "string", "bullets": ["string", "string", "string"]}`, intent, ctxJSON, recsJSON)
}

// Node 是说明阶段的 pipeline.Node。
type Node struct {
	Explainer *Explainer
}

func (n *Node) Name() string          { return "explain.reasoning" }
func (n *Node) Stage() pipeline.Stage { return pipeline.StageExplain }

func (n *Node) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	exp, trace := n.Explainer.Explain(ctx, st.Intent.Intent, st.Context(), st.Recommendations)
	return st.WithExplanation(exp), pipeline.Fields{
		"has_one_liner": exp.OneLiner != "",
		"bullets":       len(exp.Bullets),
		"trace":         trace,
	}
}
