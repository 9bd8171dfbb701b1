package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 指标上报接口。路由策略只依赖此接口，不绑定具体后端。
type Metrics interface {
	// RecordRequest 记录一次请求。cacheStatus 为 hit | miss | bypass。
	RecordRequest(provider, model, agentID, cacheStatus string, durationSec float64)
	// RecordCost 记录成本（美元）。
	RecordCost(provider, model string, costUSD float64)
	// RecordTokens 记录 token 用量。tokenType 为 prompt | completion。
	RecordTokens(tokenType, provider, model string, tokens int)
	// UpdateCacheHitRate 更新 agent 维度的缓存命中率（0.0 - 1.0）。
	UpdateCacheHitRate(agentID string, hitRate float64)
	// RecordProviderError 记录一次后端错误。
	RecordProviderError(provider string)
}

// NopMetrics 空实现，禁用指标时使用。
type NopMetrics struct{}

func (NopMetrics) RecordRequest(provider, model, agentID, cacheStatus string, durationSec float64) {}
func (NopMetrics) RecordCost(provider, model string, costUSD float64)                             {}
func (NopMetrics) RecordTokens(tokenType, provider, model string, tokens int)                     {}
func (NopMetrics) UpdateCacheHitRate(agentID string, hitRate float64)                             {}
func (NopMetrics) RecordProviderError(provider string)                                            {}

// PromMetrics Prometheus 指标实现。
type PromMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHitRate    *prometheus.GaugeVec
	costUSD         *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec
}

// NewPromMetrics 创建 Prometheus 指标并注册到给定 Registry。
func NewPromMetrics(registry *prometheus.Registry) *PromMetrics {
	factory := promauto.With(registry)

	return &PromMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by provider, model, agent_id, and cache status",
			},
			[]string{"provider", "model", "agent_id", "cache_status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		cacheHitRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llm_cache_hit_rate",
				Help: "Cache hit rate by agent_id (0.0 to 1.0)",
			},
			[]string{"agent_id"},
		),
		costUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_cost_usd",
				Help: "Total cost in USD by provider and model",
			},
			[]string{"provider", "model"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total tokens used by type (prompt, completion)",
			},
			[]string{"type", "provider", "model"},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_provider_errors_total",
				Help: "Total provider errors by provider name",
			},
			[]string{"provider"},
		),
	}
}

func (m *PromMetrics) RecordRequest(provider, model, agentID, cacheStatus string, durationSec float64) {
	m.requestsTotal.WithLabelValues(provider, model, agentID, cacheStatus).Inc()
	if durationSec > 0 {
		m.requestDuration.WithLabelValues(provider, model).Observe(durationSec)
	}
}

func (m *PromMetrics) RecordCost(provider, model string, costUSD float64) {
	m.costUSD.WithLabelValues(provider, model).Add(costUSD)
}

func (m *PromMetrics) RecordTokens(tokenType, provider, model string, tokens int) {
	m.tokensTotal.WithLabelValues(tokenType, provider, model).Add(float64(tokens))
}

func (m *PromMetrics) UpdateCacheHitRate(agentID string, hitRate float64) {
	m.cacheHitRate.WithLabelValues(agentID).Set(hitRate)
}

func (m *PromMetrics) RecordProviderError(provider string) {
	m.providerErrors.WithLabelValues(provider).Inc()
}
