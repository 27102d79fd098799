package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
)

// OpenAIClient 是 OpenAI 兼容接口（/chat/completions、/embeddings）的客户端，
// 同时实现 core.ReasoningService 与 core.Embedder。
//
// 工程特征：
//   - 限速：相邻请求之间保持最小间隔（rate.Limiter）
//   - 熔断：连续失败后短路，避免拖慢每个请求（gobreaker）
//   - 超时：单次 HTTP 调用的超时，由 http.Client 控制
type OpenAIClient struct {
	// Endpoint 服务端点，例如 "https://api.openai.com/v1"
	Endpoint string

	// Model 对话模型
	Model string

	// EmbeddingModel 向量模型
	EmbeddingModel string

	// Timeout 单次调用超时
	Timeout time.Duration

	// MaxRepairs 修复调用次数上限（不含首次调用）
	MaxRepairs int

	// Auth 认证信息
	Auth *AuthConfig

	temperatures map[core.ReasoningTask]float64
	minInterval  time.Duration
	breaker      BreakerConfig

	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type   string // "bearer"（默认）或 "api_key"（Azure 风格 api-key 头）
	Token  string
	APIKey string
}

// BreakerConfig 熔断配置
type BreakerConfig struct {
	// ConsecutiveFailures 连续失败多少次后打开熔断，0 表示关闭熔断
	ConsecutiveFailures uint32

	// OpenTimeout 熔断打开后多久进入半开状态
	OpenTimeout time.Duration
}

// OpenAIOption 客户端配置选项
type OpenAIOption func(*OpenAIClient)

// WithOpenAIModel 设置对话模型
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.Model = model
	}
}

// WithOpenAIEmbeddingModel 设置向量模型
func WithOpenAIEmbeddingModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.EmbeddingModel = model
	}
}

// WithOpenAITimeout 设置超时时间
func WithOpenAITimeout(timeout time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		c.Timeout = timeout
	}
}

// WithOpenAIAuth 设置认证信息
func WithOpenAIAuth(auth *AuthConfig) OpenAIOption {
	return func(c *OpenAIClient) {
		c.Auth = auth
	}
}

// WithOpenAIMaxRepairs 设置修复调用次数上限
func WithOpenAIMaxRepairs(n int) OpenAIOption {
	return func(c *OpenAIClient) {
		if n >= 0 {
			c.MaxRepairs = n
		}
	}
}

// WithOpenAITemperature 设置某类任务的采样温度
func WithOpenAITemperature(task core.ReasoningTask, t float64) OpenAIOption {
	return func(c *OpenAIClient) {
		c.temperatures[task] = t
	}
}

// WithOpenAIMinInterval 设置相邻请求的最小间隔，0 表示不限速
func WithOpenAIMinInterval(d time.Duration) OpenAIOption {
	return func(c *OpenAIClient) {
		c.minInterval = d
	}
}

// WithOpenAIBreaker 设置熔断参数
func WithOpenAIBreaker(cfg BreakerConfig) OpenAIOption {
	return func(c *OpenAIClient) {
		c.breaker = cfg
	}
}

// WithOpenAIHTTPClient 使用自定义 http.Client（测试用）
func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.httpClient = hc
	}
}

// WithOpenAILogger 设置日志
func WithOpenAILogger(logger zerolog.Logger) OpenAIOption {
	return func(c *OpenAIClient) {
		c.logger = logging.Component(logger, "reasoning")
	}
}

// WithOpenAIMetrics 设置指标
func WithOpenAIMetrics(m *metrics.Metrics) OpenAIOption {
	return func(c *OpenAIClient) {
		c.metrics = m
	}
}

// NewOpenAIClient 创建客户端。
func NewOpenAIClient(endpoint string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		Endpoint:       strings.TrimRight(endpoint, "/"),
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Timeout:        30 * time.Second,
		MaxRepairs:     1,
		temperatures: map[core.ReasoningTask]float64{
			core.TaskIntent:   0.2,
			core.TaskPlan:     0.2,
			core.TaskCritique: 0.2,
			core.TaskExplain:  0.55,
		},
		breaker: BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	if c.minInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(c.minInterval), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](c.breakerSettings())
	return c
}

func (c *OpenAIClient) breakerSettings() gobreaker.Settings {
	threshold := c.breaker.ConsecutiveFailures
	return gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     c.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		// 调用方的 ctx 结束导致的失败不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			c.metrics.SetBreakerState(name, float64(to))
		},
	}
}

var errCallerDone = errors.New("caller context done")

// statusError 是非 2xx 响应。
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openai error: status=%d, body=%s", e.Code, e.Body)
}

// postJSON 发送 JSON 请求并把响应解码到 out。
func (c *OpenAIClient) postJSON(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	raw, err := c.cb.Execute(func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		c.addAuth(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("http request failed: %w: %w", errCallerDone, ctx.Err())
			}
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{Code: resp.StatusCode, Body: truncate(string(data), 256)}
		}
		return data, nil
	})
	if err != nil {
		return core.WrapDomainError(core.ModuleReasoning, core.ErrorCodeUnavailable, "openai "+path, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return core.WrapDomainError(core.ModuleReasoning, core.ErrorCodeInvalidInput, "decode response", err)
	}
	return nil
}

// addAuth 添加认证信息到 HTTP 请求
func (c *OpenAIClient) addAuth(req *http.Request) {
	if c.Auth == nil {
		return
	}
	switch c.Auth.Type {
	case "api_key":
		req.Header.Set("api-key", c.Auth.APIKey)
	default:
		if c.Auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.Auth.Token)
		}
	}
}

// errorKind 把错误归类为简短的 trace 标签。
func errorKind(err error) string {
	var se *statusError
	var ne net.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &se):
		return fmt.Sprintf("http_%d", se.Code)
	case errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	case core.IsInvalidInput(err):
		return "bad_response"
	default:
		return "transport"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
