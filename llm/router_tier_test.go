package llm

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentgate/agents"
	"github.com/BaSui01/agentgate/llm/costs"
)

func newTierRouter(t *testing.T, cfg TierRouterConfig) *TierRouter {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = agents.NewRegistry()
	}
	r, err := NewTierRouter(cfg)
	require.NoError(t, err)
	return r
}

func TestTierRouterRequiresLocalProvider(t *testing.T) {
	_, err := NewTierRouter(TierRouterConfig{Registry: agents.NewRegistry()})
	assert.Error(t, err)
}

func TestTierRouterRequiresRegistry(t *testing.T) {
	_, err := NewTierRouter(TierRouterConfig{LocalProvider: &stubProvider{name: "ollama"}})
	assert.Error(t, err)
}

func TestTierRouterLocalTier(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	cloud := &stubProvider{name: "anthropic"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "fast", ModelTier: agents.TierLocal})

	r := newTierRouter(t, TierRouterConfig{
		Registry:       registry,
		LocalProvider:  local,
		CloudProviders: map[string]Provider{"anthropic": cloud},
	})

	resp, err := r.Complete(context.Background(), CompletionRequest{AgentID: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Zero(t, cloud.callCount())
}

func TestTierRouterCloudTier(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "smart", ModelTier: agents.TierCloud})

	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-opus", "anthropic"},
		{"gpt-4o", "openai"},
		{"o1", "openai"},
		{"meta-llama/llama-3-70b", "openrouter"},
		{"unknown-model", "anthropic"}, // 固定优先级回退 anthropic→openai→openrouter
	}

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
		CloudProviders: map[string]Provider{
			"anthropic":  &stubProvider{name: "anthropic"},
			"openai":     &stubProvider{name: "openai"},
			"openrouter": &stubProvider{name: "openrouter"},
		},
	})

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			resp, err := r.Complete(context.Background(), CompletionRequest{AgentID: "smart", Model: tt.model})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Provider)
		})
	}
}

func TestTierRouterCloudTierNoCloudFallsBackLocal(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "smart", ModelTier: agents.TierCloud})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
	})

	resp, err := r.Complete(context.Background(), CompletionRequest{AgentID: "smart", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)
}

func TestTierRouterHybridRoutesByComplexity(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	cloud := &stubProvider{name: "anthropic"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{
		ID:                  "hybrid-agent",
		ModelTier:           agents.TierHybrid,
		ComplexityThreshold: 0.5,
	})

	r := newTierRouter(t, TierRouterConfig{
		Registry:       registry,
		LocalProvider:  local,
		CloudProviders: map[string]Provider{"anthropic": cloud},
	})

	// 简单请求走本地
	resp, err := r.Complete(context.Background(), CompletionRequest{
		AgentID:  "hybrid-agent",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)

	// 复杂请求（大输入 + 推理系统提示 + 大输出预算）走云
	big := make([]Message, 0, 12)
	big = append(big, Message{Role: RoleSystem, Content: "analyze and implement the algorithm"})
	for i := 0; i < 11; i++ {
		big = append(big, Message{Role: RoleUser, Content: strings.Repeat("x", 900)})
	}
	resp, err = r.Complete(context.Background(), CompletionRequest{
		AgentID:   "hybrid-agent",
		Messages:  big,
		MaxTokens: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resp.Provider)

	m := r.GetMetrics()
	assert.Equal(t, int64(1), m.LocalHits)
	assert.Equal(t, int64(1), m.CloudHits)
}

func TestTierRouterAppliesAgentDefaults(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{
		ID:           "configured",
		ModelTier:    agents.TierLocal,
		DefaultModel: "llama3",
		MaxTokens:    1234,
		Temperature:  0.3,
	})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
	})

	resp, err := r.Complete(context.Background(), CompletionRequest{AgentID: "configured"})
	require.NoError(t, err)
	// stub 回显请求 model，可验证默认模型已填充
	assert.Equal(t, "llama3", resp.Model)
}

func TestTierRouterCacheHitSkipsBackend(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "cached", ModelTier: agents.TierLocal})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
		CacheEnabled:  true,
		CacheTTL:      time.Minute,
	})

	req := CompletionRequest{
		AgentID:  "cached",
		Model:    "llama3",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	first, err := r.Complete(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), local.callCount())

	second, err := r.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), local.callCount()) // 命中缓存，未到后端
	assert.Equal(t, int64(1), r.GetMetrics().CacheHits)
}

func TestTierRouterCacheHitsWithAgentDefaultModel(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{
		ID:           "configured",
		ModelTier:    agents.TierLocal,
		DefaultModel: "llama3",
	})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
		CacheEnabled:  true,
		CacheTTL:      time.Minute,
	})

	// 请求不带模型，依赖 agent 的默认模型
	req := CompletionRequest{
		AgentID:  "configured",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	_, err := r.Complete(context.Background(), req)
	require.NoError(t, err)

	_, err = r.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), local.callCount()) // 写入与查询使用同一个缓存键
	assert.Equal(t, int64(1), r.GetMetrics().CacheHits)
}

// blockingProvider 在放行前阻塞补全调用，用于制造并发缓存未命中。
type blockingProvider struct {
	stubProvider
	release chan struct{}
}

func (b *blockingProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	<-b.release
	return b.stubProvider.Complete(ctx, req)
}

func TestTierRouterCoalescesConcurrentMisses(t *testing.T) {
	local := &blockingProvider{
		stubProvider: stubProvider{name: "ollama"},
		release:      make(chan struct{}),
	}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "cached", ModelTier: agents.TierLocal})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
		CacheEnabled:  true,
		CacheTTL:      time.Minute,
	})

	req := CompletionRequest{
		AgentID:  "cached",
		Model:    "llama3",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]CompletionResponse, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Complete(context.Background(), req)
		}(i)
	}

	// 等所有调用方挂在同一个键上再放行后端
	time.Sleep(50 * time.Millisecond)
	close(local.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Content, results[i].Content)
	}
	assert.Equal(t, int64(1), local.callCount()) // 并发未命中只触发一次后端调用
}

func TestTierRouterCacheExpiryGoesBackToBackend(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "cached", ModelTier: agents.TierLocal})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
		CacheEnabled:  true,
		CacheTTL:      10 * time.Millisecond,
	})

	req := CompletionRequest{
		AgentID:  "cached",
		Model:    "llama3",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	_, err := r.Complete(context.Background(), req)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = r.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), local.callCount()) // TTL 过期后重新请求后端
}

func TestTierRouterUnknownAgentGetsHybridDefaults(t *testing.T) {
	local := &stubProvider{name: "ollama"}
	r := newTierRouter(t, TierRouterConfig{
		Registry:      agents.NewRegistry(),
		LocalProvider: local,
		CloudProviders: map[string]Provider{
			"openrouter": &stubProvider{name: "openrouter"},
		},
	})

	// 未注册 agent 默认 hybrid、阈值 0.5；简单请求走本地
	resp, err := r.Complete(context.Background(), CompletionRequest{
		AgentID:  "stranger",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)
}

func TestTierRouterTracksCost(t *testing.T) {
	tracker := costs.NewTracker(costs.TrackerConfig{})
	local := &stubProvider{name: "ollama", model: "llama3"}
	registry := agents.NewRegistry()
	registry.Register(agents.AgentConfig{ID: "fast", ModelTier: agents.TierLocal})

	r := newTierRouter(t, TierRouterConfig{
		Registry:      registry,
		LocalProvider: local,
		Tracker:       tracker,
	})

	_, err := r.Complete(context.Background(), CompletionRequest{AgentID: "fast"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tracker.Status().RequestCount)
}
