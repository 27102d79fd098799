package planner

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// Planner 向推理服务请求建议 Plan，再用 Resolve 得到最终 Plan。
type Planner struct {
	reasoning core.ReasoningService
	cfg       Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// Option Planner 配置选项
type Option func(*Planner)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Planner) { p.logger = logging.Component(logger, "planner") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

func New(reasoning core.ReasoningService, cfg Config, opts ...Option) *Planner {
	p := &Planner{reasoning: reasoning, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var schemaHint = map[string]any{
	"use_behavioral":    true,
	"use_semantic":      true,
	"weight_behavioral": 0.4,
	"weight_semantic":   0.6,
	"trace":             []string{"..."},
}

const systemPrompt = `You are a retrieval planner for a movie recommender with two tools:
a behavioral tool (what similar viewers watched) and a semantic tool (matches the query text).
Output ONLY valid JSON. Choose which tools to use and how to weight them.`

// Plan 得到最终 Plan。
func (p *Planner) Plan(ctx context.Context, intent core.IntentResult, rctx *core.RecommendContext) core.Plan {
	advisory := core.ReasoningFailed("reasoning_unavailable")
	if p.reasoning != nil {
		advisory = p.reasoning.Generate(ctx, &core.ReasoningRequest{
			Task:         core.TaskPlan,
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt(intent, rctx),
			SchemaHint:   schemaHint,
			ExpectedKeys: []string{"use_behavioral", "use_semantic"},
		})
	}
	if !advisory.OK {
		p.metrics.IncAdvisoryFailure(string(core.TaskPlan))
		p.logger.Warn().Strs("trace", advisory.Trace).Msg("plan advisory failed, using default weights")
	}

	plan := Resolve(p.cfg, intent.Intent, rctx, advisory)
	if err := plan.Validate(1e-9); err != nil {
		// Resolve 的输出总是合法的，走到这里说明配置有问题
		p.logger.Error().Err(err).Msg("resolved plan violates invariants")
	}
	return plan
}

func userPrompt(intent core.IntentResult, rctx *core.RecommendContext) string {
	ctxJSON, _ := json.MarshalIndent(rctx.Snapshot(), "", "  ")
	return fmt.Sprintf(`Intent: %s (confidence %.2f)

Context (JSON):
%s

Return ONLY this JSON schema:
{"use_behavioral": true, "use_semantic": true, "weight_behavioral": 0.4, "weight_semantic": 0.6, "trace": ["reason"]}`,
		intent.Intent, intent.Confidence, ctxJSON)
}

// Node 是计划阶段的 pipeline.Node。
type Node struct {
	Planner *Planner
}

func (n *Node) Name() string          { return "planner.weight_resolver" }
func (n *Node) Stage() pipeline.Stage { return pipeline.StagePlan }

func (n *Node) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	plan := n.Planner.Plan(ctx, st.Intent, st.Context())
	return st.WithPlan(plan), pipeline.Fields{
		"use_behavioral":    plan.UseBehavioral,
		"use_semantic":      plan.UseSemantic,
		"weight_behavioral": plan.WeightBehavioral,
		"weight_semantic":   plan.WeightSemantic,
		"trace":             plan.Trace,
	}
}
