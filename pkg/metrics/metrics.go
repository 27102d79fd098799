// Package metrics 定义推荐链路的 Prometheus 指标。
//
// 所有方法对 nil *Metrics 安全，组件可以不注入指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	StageLatency      *prometheus.HistogramVec
	Requests          *prometheus.CounterVec
	Reranks           prometheus.Counter
	AdvisoryFailures  *prometheus.CounterVec
	RetrievalGaps     *prometheus.CounterVec
	Recommendations   prometheus.Histogram
	ReasoningAttempts *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
}

// New 创建并注册指标；reg 为 nil 时使用独立的 Registry。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentrec_stage_latency_seconds",
			Help:    "Latency of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrec_requests_total",
			Help: "Total number of recommendation requests by outcome",
		}, []string{"outcome"}),
		Reranks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentrec_reranks_total",
			Help: "Total number of requests that took the rerank branch",
		}),
		AdvisoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrec_advisory_failures_total",
			Help: "Reasoning results that fell back to deterministic defaults",
		}, []string{"task"}),
		RetrievalGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrec_retrieval_gaps_total",
			Help: "Retrieval tool calls that failed or timed out",
		}, []string{"source"}),
		Recommendations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentrec_recommendations_returned",
			Help:    "Number of recommendations returned per request",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		}),
		ReasoningAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentrec_reasoning_attempts_total",
			Help: "Reasoning service calls by task and result",
		}, []string{"task", "result"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentrec_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
	}
	reg.MustRegister(
		m.StageLatency,
		m.Requests,
		m.Reranks,
		m.AdvisoryFailures,
		m.RetrievalGaps,
		m.Recommendations,
		m.ReasoningAttempts,
		m.BreakerState,
	)
	return m
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRerank() {
	if m == nil {
		return
	}
	m.Reranks.Inc()
}

func (m *Metrics) IncAdvisoryFailure(task string) {
	if m == nil {
		return
	}
	m.AdvisoryFailures.WithLabelValues(task).Inc()
}

func (m *Metrics) IncRetrievalGap(source string) {
	if m == nil {
		return
	}
	m.RetrievalGaps.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRecommendations(n int) {
	if m == nil {
		return
	}
	m.Recommendations.Observe(float64(n))
}

func (m *Metrics) IncReasoningAttempt(task, result string) {
	if m == nil {
		return
	}
	m.ReasoningAttempts.WithLabelValues(task, result).Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}
