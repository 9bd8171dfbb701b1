package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPromMetricsRecordRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPromMetrics(registry)

	m.RecordRequest("openrouter", "gpt-4o", "agent-1", "miss", 0.5)
	m.RecordRequest("openrouter", "gpt-4o", "agent-1", "hit", 0)

	got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("openrouter", "gpt-4o", "agent-1", "miss"))
	assert.Equal(t, 1.0, got)
	got = testutil.ToFloat64(m.requestsTotal.WithLabelValues("openrouter", "gpt-4o", "agent-1", "hit"))
	assert.Equal(t, 1.0, got)
}

func TestPromMetricsCostAndTokens(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPromMetrics(registry)

	m.RecordCost("ollama", "llama3", 0.25)
	m.RecordCost("ollama", "llama3", 0.25)
	m.RecordTokens("prompt", "ollama", "llama3", 100)
	m.RecordTokens("completion", "ollama", "llama3", 50)

	assert.InDelta(t, 0.5, testutil.ToFloat64(m.costUSD.WithLabelValues("ollama", "llama3")), 1e-9)
	assert.Equal(t, 100.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("prompt", "ollama", "llama3")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("completion", "ollama", "llama3")))
}

func TestPromMetricsCacheHitRateAndErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPromMetrics(registry)

	m.UpdateCacheHitRate("agent-1", 0.8)
	m.RecordProviderError("huggingface")

	assert.InDelta(t, 0.8, testutil.ToFloat64(m.cacheHitRate.WithLabelValues("agent-1")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerErrors.WithLabelValues("huggingface")))
}

func TestNopMetricsIsMetrics(t *testing.T) {
	var _ Metrics = NopMetrics{}
	var _ Metrics = (*PromMetrics)(nil)
}
