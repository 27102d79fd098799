// Package intent 实现意图识别阶段：推理服务给出建议，确定性规则最终裁决。
package intent

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/conv"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// Config 意图规则配置
type Config struct {
	// LowNoveltyThreshold 新颖度容忍度低于该值时判为 comfort
	LowNoveltyThreshold float64

	// QuickWatchMinutes 可用时长不超过该值时判为 quick_watch
	QuickWatchMinutes float64

	// DefaultConfidence 推理服务未给出置信度时使用
	DefaultConfidence float64

	// MinConfidence 置信度低于该值时要求澄清
	MinConfidence float64

	// DefaultQuestion 需要澄清但推理服务没有给出问题时使用
	DefaultQuestion string
}

// DefaultConfig 返回默认规则配置。
func DefaultConfig() Config {
	return Config{
		LowNoveltyThreshold: 0.3,
		QuickWatchMinutes:   45,
		DefaultConfidence:   0.6,
		MinConfidence:       0.5,
		DefaultQuestion:     "Do you want something closer to what you usually watch, or something new to you?",
	}
}

// Resolver 意图解析器
type Resolver struct {
	reasoning core.ReasoningService
	cfg       Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// Option Resolver 配置选项
type Option func(*Resolver)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logging.Component(logger, "intent") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func NewResolver(reasoning core.ReasoningService, cfg Config, opts ...Option) *Resolver {
	r := &Resolver{reasoning: reasoning, cfg: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var schemaHint = map[string]any{
	"intent":                 "search",
	"confidence":             0.8,
	"needs_clarification":    false,
	"clarification_question": "",
	"trace":                  []string{"..."},
}

const systemPrompt = `You are an intent classification agent for a movie recommender.
Output ONLY valid JSON (no markdown, no commentary).
Use only the provided context. Do not invent user preferences.
Classify the user's intent, decide if a clarification question is needed,
and produce a short trace list of high-level reasons.`

// Resolve 得到请求意图；推理服务失败时只使用确定性规则。
func (r *Resolver) Resolve(ctx context.Context, rctx *core.RecommendContext) core.IntentResult {
	var advisory core.ReasoningResult
	if r.reasoning != nil {
		advisory = r.reasoning.Generate(ctx, &core.ReasoningRequest{
			Task:         core.TaskIntent,
			SystemPrompt: systemPrompt,
			UserPrompt:   r.userPrompt(rctx),
			SchemaHint:   schemaHint,
			ExpectedKeys: []string{"intent"},
		})
	} else {
		advisory = core.ReasoningFailed("reasoning_unavailable")
	}
	if !advisory.OK {
		r.metrics.IncAdvisoryFailure(string(core.TaskIntent))
		r.logger.Warn().Strs("trace", advisory.Trace).Msg("intent advisory failed, using rules only")
	}
	return Apply(r.cfg, rctx, advisory)
}

func (r *Resolver) userPrompt(rctx *core.RecommendContext) string {
	ctxJSON, _ := json.MarshalIndent(rctx.Snapshot(), "", "  ")
	return fmt.Sprintf(`Context (JSON):
%s

Allowed intents (choose exactly one):
- "search": user has a concrete query phrase or specific attributes
- "explore": browsing / discovery
- "comfort": safer, familiar picks; low novelty tolerance
- "quick_watch": time-constrained; prefers shorter / low-commitment

Return ONLY this JSON schema:
{"intent": "search|explore|comfort|quick_watch", "confidence": 0.0, "needs_clarification": false, "clarification_question": "", "trace": ["reason"]}`, ctxJSON)
}

// Apply 把推理建议与确定性规则合并为最终意图，是纯函数。
//
// 规则（依次）：
//   - 有查询 → search
//   - 否则新颖度容忍度低于阈值 → comfort
//   - 否则可用时长不超过阈值 → quick_watch
//   - 否则采用建议，未知值为 explore
func Apply(cfg Config, rctx *core.RecommendContext, advisory core.ReasoningResult) core.IntentResult {
	var trace []string
	if v, ok := advisory.Get("trace"); ok {
		trace = append(trace, conv.ToStringSlice(v)...)
	}
	trace = append(trace, advisory.Trace...)

	intent := core.IntentExplore
	if v, ok := advisory.Get("intent"); ok {
		if s, ok := conv.ToString(v); ok {
			if parsed, ok := core.ParseIntent(s); ok {
				intent = parsed
			} else {
				trace = append(trace, "unknown_intent_defaulted:"+s)
			}
		}
	}

	switch {
	case rctx.HasQuery():
		if intent != core.IntentSearch {
			trace = append(trace, "override:query_present->search")
		}
		intent = core.IntentSearch
	case rctx.NoveltyTolerance != nil && *rctx.NoveltyTolerance < cfg.LowNoveltyThreshold:
		if intent != core.IntentComfort {
			trace = append(trace, "override:low_novelty_tolerance->comfort")
		}
		intent = core.IntentComfort
	case rctx.AvailableMinutes != nil && *rctx.AvailableMinutes <= cfg.QuickWatchMinutes:
		if intent != core.IntentQuickWatch {
			trace = append(trace, "override:short_time_budget->quick_watch")
		}
		intent = core.IntentQuickWatch
	}

	confidence := cfg.DefaultConfidence
	if v, ok := advisory.Get("confidence"); ok {
		if f, ok := conv.ToFloat64(v); ok {
			confidence = f
		}
	}
	confidence = conv.Clamp(confidence, 0, 1)

	needs := false
	if v, ok := advisory.Get("needs_clarification"); ok {
		needs, _ = conv.ToBool(v)
	}
	question := ""
	if v, ok := advisory.Get("clarification_question"); ok {
		question, _ = conv.ToString(v)
	}
	if confidence < cfg.MinConfidence && !needs {
		needs = true
		trace = append(trace, "low_confidence_clarification")
	}
	if needs && question == "" {
		question = cfg.DefaultQuestion
		trace = append(trace, "default_clarification_applied")
	}
	if !needs {
		question = ""
	}

	return core.IntentResult{
		Intent:                intent,
		Confidence:            confidence,
		NeedsClarification:    needs,
		ClarificationQuestion: question,
		Trace:                 append(trace, "intent_resolved"),
	}
}
