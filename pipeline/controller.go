package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// Controller 按状态机顺序驱动各阶段 Node。
//
// 单个请求内各阶段串行执行；Controller 本身无状态，可被并发请求共享。
type Controller struct {
	nodes   map[Stage]Node
	logger  zerolog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// ControllerOption Controller 配置选项
type ControllerOption func(*Controller)

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logging.Component(logger, "pipeline")
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithRequestIDFunc 设置请求 ID 生成函数（默认 uuid v4）
func WithRequestIDFunc(fn func() string) ControllerOption {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewController 创建 Controller；Stages 中的每个阶段都必须恰好有一个 Node。
func NewController(nodes []Node, opts ...ControllerOption) (*Controller, error) {
	c := &Controller{
		nodes:  make(map[Stage]Node, len(nodes)),
		logger: zerolog.Nop(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if old, dup := c.nodes[n.Stage()]; dup {
			return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
				fmt.Sprintf("stage %s has two nodes: %s, %s", n.Stage(), old.Name(), n.Name()))
		}
		c.nodes[n.Stage()] = n
	}
	for _, stage := range Stages {
		if _, ok := c.nodes[stage]; !ok {
			return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
				fmt.Sprintf("stage %s has no node", stage))
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run 执行一次推荐请求。
//
// 只有 ctx 被取消（context.Canceled）时才返回 error，此时丢弃进行中的 State。
// 超过截止时间后剩余阶段照常执行：建议类调用立即失败并回退到默认值，
// 已得到的推荐列表保留。其余情况总是返回结果（推荐列表可能为空）。
func (c *Controller) Run(ctx context.Context, rctx *core.RecommendContext) (*Result, error) {
	if rctx == nil {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "recommend context is nil")
	}

	st := NewState(c.newID(), rctx)
	logger := c.logger.With().Str("request_id", st.RequestID()).Logger()

	degraded := false
	for stage := StageIntent; stage != StageDone; stage = Next(stage, st) {
		if err := ctx.Err(); err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.metrics.IncRequest("canceled")
				logger.Debug().Str("stage", string(stage)).Err(err).Msg("request canceled")
				return nil, err
			}
			if !degraded {
				degraded = true
				logger.Warn().Str("stage", string(stage)).Msg("deadline exceeded, finishing remaining stages with defaults")
			}
		}

		node := c.nodes[stage]
		start := time.Now()
		next, fields := node.Process(ctx, st)
		elapsed := time.Since(start)
		if degraded {
			if fields == nil {
				fields = Fields{}
			}
			fields["deadline_exceeded"] = true
		}

		// 请求上下文、trace 与重排计数由 Controller 维护
		next.requestID, next.rctx, next.trace, next.reranks = st.requestID, st.rctx, st.trace, st.reranks
		st = next.appendTrace(stage, node.Name(), fields)
		if stage == StageRerank {
			st.reranks++
			c.metrics.IncRerank()
		}

		c.metrics.ObserveStage(string(stage), elapsed)
		logger.Debug().
			Str("stage", string(stage)).
			Str("node", node.Name()).
			Dur("elapsed", elapsed).
			Msg("stage done")
	}

	if degraded {
		c.metrics.IncRequest("deadline")
	} else {
		c.metrics.IncRequest("ok")
	}
	c.metrics.ObserveRecommendations(len(st.Recommendations))
	return st.Result(), nil
}
