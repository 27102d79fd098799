// Package server 提供推荐链路的 HTTP 接口。
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
)

// 请求体上限
const maxBodyBytes = 1 << 20

// Runner 执行一次推荐请求，*pipeline.Controller 实现该接口。
type Runner interface {
	Run(ctx context.Context, rctx *core.RecommendContext) (*pipeline.Result, error)
}

// Server HTTP 处理器
type Server struct {
	runner   Runner
	logger   zerolog.Logger
	gatherer prometheus.Gatherer
	validate *validator.Validate

	requestTimeout  time.Duration
	rateLimit       int
	rateLimitWindow time.Duration
}

// Option Server 配置选项
type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logging.Component(logger, "server") }
}

// WithGatherer 设置 /metrics 暴露的指标来源，默认 prometheus.DefaultGatherer。
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithRequestTimeout 单次推荐的超时，0 表示不额外限制。
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithRateLimit 按客户端 IP 限流，n<=0 时关闭。
func WithRateLimit(n int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimit = n
		s.rateLimitWindow = window
	}
}

// New 创建 Server。
func New(runner Runner, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		logger:   zerolog.Nop(),
		gatherer: prometheus.DefaultGatherer,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 返回路由。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.Limit(s.rateLimit, s.rateLimitWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Post("/recommend", s.recommend)
	})
	return r
}

// RecommendRequest 是 POST /v1/recommend 的请求体。
type RecommendRequest struct {
	UserID           UserID         `json:"user_id"`
	Query            string         `json:"query" validate:"max=1000"`
	NoveltyTolerance *float64       `json:"novelty_tolerance" validate:"omitempty,gte=0,lte=1"`
	AvailableMinutes *float64       `json:"available_minutes" validate:"omitempty,gte=0"`
	Params           map[string]any `json:"params"`
}

// Context 转为请求上下文。
func (r RecommendRequest) Context() *core.RecommendContext {
	rctx := core.NewRecommendContext(string(r.UserID), r.Query)
	if r.NoveltyTolerance != nil {
		rctx = rctx.WithNoveltyTolerance(*r.NoveltyTolerance)
	}
	if r.AvailableMinutes != nil {
		rctx = rctx.WithAvailableMinutes(*r.AvailableMinutes)
	}
	if len(r.Params) > 0 {
		rctx.Params = r.Params
	}
	return rctx
}

// UserID 同时接受字符串与数字形式的用户 ID。
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(strings.TrimSpace(s))
		return nil
	}
	if string(data) == "null" {
		*u = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return errors.New("user_id must be a string or an integer")
	}
	*u = UserID(n.String())
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	res, err := s.runner.Run(ctx, req.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			status = http.StatusServiceUnavailable
		case core.IsInvalidInput(err):
			status = http.StatusBadRequest
		}
		s.logger.Warn().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Err(err).
			Msg("recommend failed")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	s.logger.Info().
		Str("request_id", res.RequestID).
		Str("intent", string(res.Intent.Intent)).
		Int("returned", len(res.Recommendations)).
		Msg("recommend done")
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
