package recall

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// Fanout 是检索阶段的 Node：按 Plan 并发调用启用的检索源。
//
// 未启用的检索源贡献空集合；单个检索源超时或失败时同样得到空集合，
// 不影响其他检索源，也不中断请求。
type Fanout struct {
	behavioral Source
	semantic   Source
	cfg        core.RetrievalConfig
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// FanoutOption Fanout 配置选项
type FanoutOption func(*Fanout)

func WithLogger(logger zerolog.Logger) FanoutOption {
	return func(f *Fanout) { f.logger = logging.Component(logger, "recall.fanout") }
}

func WithMetrics(m *metrics.Metrics) FanoutOption {
	return func(f *Fanout) { f.metrics = m }
}

// NewFanout 创建检索节点，cfg 为 nil 时使用 core.DefaultRetrievalConfig。
func NewFanout(behavioral core.BehavioralRetriever, semantic core.SemanticRetriever, cfg core.RetrievalConfig, opts ...FanoutOption) *Fanout {
	if cfg == nil {
		cfg = &core.DefaultRetrievalConfig{}
	}
	f := &Fanout{
		behavioral: BehavioralSource{Retriever: behavioral},
		semantic:   SemanticSource{Retriever: semantic},
		cfg:        cfg,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fanout) Name() string          { return "recall.fanout" }
func (f *Fanout) Stage() pipeline.Stage { return pipeline.StageRetrieve }

type sourceResult struct {
	candidates []core.Candidate
	status     string
	elapsed    time.Duration
}

func (f *Fanout) Process(ctx context.Context, st pipeline.State) (pipeline.State, pipeline.Fields) {
	rctx := st.Context()
	plan := st.Plan

	var (
		bRes = sourceResult{status: "inactive"}
		sRes = sourceResult{status: "inactive"}
		eg   errgroup.Group
	)
	if plan.UseBehavioral {
		eg.Go(func() error {
			bRes = f.call(ctx, f.behavioral, rctx, f.cfg.DefaultBehavioralK())
			return nil
		})
	}
	if plan.UseSemantic {
		if rctx.HasQuery() {
			eg.Go(func() error {
				sRes = f.call(ctx, f.semantic, rctx, f.cfg.DefaultSemanticK())
				return nil
			})
		} else {
			sRes.status = "skipped_empty_query"
		}
	}
	_ = eg.Wait()

	cands := pipeline.Candidates{Behavioral: bRes.candidates, Semantic: sRes.candidates}
	return st.WithCandidates(cands), pipeline.Fields{
		"behavioral_status": bRes.status,
		"behavioral_count":  len(cands.Behavioral),
		"semantic_status":   sRes.status,
		"semantic_count":    len(cands.Semantic),
	}
}

// call 带超时调用单个检索源，失败时返回空集合与状态说明。
func (f *Fanout) call(ctx context.Context, src Source, rctx *core.RecommendContext, k int) sourceResult {
	kind := string(src.Kind())
	start := time.Now()

	callCtx := ctx
	if timeout := f.cfg.DefaultTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	items, err := src.Retrieve(callCtx, rctx, k)
	res := sourceResult{elapsed: time.Since(start)}
	switch {
	case err != nil:
		res.status = "failed"
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			res.status = "timeout"
		}
		f.metrics.IncRetrievalGap(kind)
		f.logger.Warn().Err(err).Str("source", kind).Dur("elapsed", res.elapsed).Msg("retrieval tool failed, using empty candidate set")
	case len(items) == 0:
		res.status = "empty"
		f.metrics.IncRetrievalGap(kind)
	default:
		res.status = "ok"
		res.candidates = sanitize(items, k)
	}
	return res
}
