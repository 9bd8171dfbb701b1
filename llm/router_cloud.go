package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentgate/agents"
	"github.com/BaSui01/agentgate/llm/cache"
	"github.com/BaSui01/agentgate/llm/costs"
	"github.com/BaSui01/agentgate/llm/observability"
)

// CloudRouter 只路由到云后端，不依赖本地模型。
// anthropic/openai 前缀的模型优先透明转发到聚合后端（openrouter），
// 聚合后端缺席时才直连对应厂商。
type CloudRouter struct {
	registry        *agents.Registry
	cloudProviders  map[string]Provider
	defaultProvider Provider
	tracker         *costs.Tracker
	cache           *cache.ResponseCache
	coalescer       *cache.Coalescer
	metrics         observability.Metrics
	logger          *zap.Logger

	mu         sync.RWMutex
	totalCalls int64
	cloudHits  int64
	cacheHits  int64
}

// CloudRouterConfig 云路由配置。
type CloudRouterConfig struct {
	Registry        *agents.Registry
	CloudProviders  map[string]Provider
	DefaultProvider Provider // 无前缀规则命中时的兜底后端
	Tracker         *costs.Tracker
	Metrics         observability.Metrics
	CacheEnabled    bool
	CacheTTL        time.Duration
	CacheMaxSize    int
	Logger          *zap.Logger
}

// NewCloudRouter 创建云路由器。
func NewCloudRouter(cfg CloudRouterConfig) (*CloudRouter, error) {
	if len(cfg.CloudProviders) == 0 && cfg.DefaultProvider == nil {
		return nil, NewNoProviderError("at least one cloud provider is required")
	}
	if cfg.Registry == nil {
		return nil, NewNoProviderError("agent registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	var responseCache *cache.ResponseCache
	var coalescer *cache.Coalescer
	if cfg.CacheEnabled {
		responseCache = cache.NewResponseCache(cache.Config{
			MaxSize: cfg.CacheMaxSize,
			TTL:     cfg.CacheTTL,
		})
		coalescer = cache.NewCoalescer()
	}

	return &CloudRouter{
		registry:        cfg.Registry,
		cloudProviders:  cfg.CloudProviders,
		defaultProvider: cfg.DefaultProvider,
		tracker:         cfg.Tracker,
		cache:           responseCache,
		coalescer:       coalescer,
		metrics:         metrics,
		logger:          logger,
	}, nil
}

// Name 实现 Provider 接口。
func (r *CloudRouter) Name() string {
	return "cloud-router"
}

// Complete 路由请求到云后端。
func (r *CloudRouter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	start := time.Now()

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	agentCfg := r.registry.Get(req.AgentID)

	var cacheKey string
	if r.cache != nil {
		cacheKey = buildCacheKey(req)
		if entry, ok := r.cache.Get(cacheKey); ok {
			if resp, ok := entry.Response.(CompletionResponse); ok {
				r.mu.Lock()
				r.totalCalls++
				r.cacheHits++
				r.mu.Unlock()

				r.metrics.RecordRequest("cache", resp.Model, req.AgentID, "hit", time.Since(start).Seconds())
				r.logger.Debug("cache hit", zap.String("agent_id", req.AgentID))
				return resp, nil
			}
		}
	}

	provider, name := r.selectProvider(agentCfg, req)
	if provider == nil {
		return CompletionResponse{}, NewNoProviderError("no provider available for agent " + req.AgentID)
	}

	applyAgentOverrides(&req, agentCfg)

	r.mu.Lock()
	r.totalCalls++
	r.cloudHits++
	r.mu.Unlock()

	r.logger.Debug("routing to cloud",
		zap.String("request_id", req.RequestID),
		zap.String("agent_id", req.AgentID),
		zap.String("tier", string(agentCfg.ModelTier)),
		zap.String("provider", name),
		zap.String("model", req.Model),
	)

	// 相同键的并发未命中只调用一次后端，其余请求共享结果
	if r.coalescer != nil {
		v, err, shared := r.coalescer.Do(cacheKey, func() (any, error) {
			return r.dispatch(ctx, provider, name, req, cacheKey, start)
		})
		if err != nil {
			return CompletionResponse{}, err
		}
		if shared {
			r.logger.Debug("request coalesced", zap.String("agent_id", req.AgentID))
		}
		return v.(CompletionResponse), nil
	}

	return r.dispatch(ctx, provider, name, req, cacheKey, start)
}

// dispatch 调用后端并完成指标上报、记账与缓存写入。
func (r *CloudRouter) dispatch(ctx context.Context, provider Provider, name string, req CompletionRequest, cacheKey string, start time.Time) (CompletionResponse, error) {
	resp, err := provider.Complete(ctx, req)
	duration := time.Since(start).Seconds()

	if err != nil {
		r.metrics.RecordProviderError(name)
		return CompletionResponse{}, NewProviderError(name, err)
	}

	r.metrics.RecordRequest(name, resp.Model, req.AgentID, "miss", duration)
	r.metrics.RecordTokens("prompt", name, resp.Model, resp.Usage.PromptTokens)
	r.metrics.RecordTokens("completion", name, resp.Model, resp.Usage.CompletionTokens)

	if r.tracker != nil {
		cost := r.tracker.TrackUsage(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		r.metrics.RecordCost(name, resp.Model, cost)
		r.logger.Debug("request cost tracked",
			zap.String("agent_id", req.AgentID),
			zap.Float64("cost_usd", cost),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
		)
	}

	if r.cache != nil {
		r.cache.Set(cacheKey, resp)
		r.metrics.UpdateCacheHitRate(req.AgentID, r.cache.Stats().HitRate())
	}

	return resp, nil
}

// Stream 路由流式请求到云后端，不经过缓存，不记账。
func (r *CloudRouter) Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	start := time.Now()

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	r.mu.Lock()
	r.totalCalls++
	r.cloudHits++
	r.mu.Unlock()

	agentCfg := r.registry.Get(req.AgentID)
	provider, name := r.selectProvider(agentCfg, req)
	if provider == nil {
		r.metrics.RecordProviderError("unknown")
		return NewNoProviderError("no provider available for agent " + req.AgentID)
	}

	applyAgentOverrides(&req, agentCfg)

	r.logger.Debug("streaming to cloud",
		zap.String("agent_id", req.AgentID),
		zap.String("provider", name),
		zap.String("model", req.Model),
	)

	err := provider.Stream(ctx, req, emit)
	duration := time.Since(start).Seconds()

	if err != nil {
		r.metrics.RecordProviderError(name)
		return err
	}

	r.metrics.RecordRequest(name, req.Model, req.AgentID, "stream", duration)
	return nil
}

// selectProvider 按模型前缀选择云后端。
// 厂商前缀优先走聚合后端，聚合后端缺席时才直连厂商。
func (r *CloudRouter) selectProvider(agentCfg agents.AgentConfig, req CompletionRequest) (Provider, string) {
	model := req.Model
	if model == "" {
		model = agentCfg.DefaultModel
	}
	model = strings.ToLower(model)

	if strings.HasPrefix(model, "anthropic/") || strings.HasPrefix(model, "claude") {
		if p, ok := r.cloudProviders["openrouter"]; ok {
			return p, "openrouter"
		}
		if p, ok := r.cloudProviders["anthropic"]; ok {
			return p, "anthropic"
		}
	}

	if strings.HasPrefix(model, "openai/") || strings.HasPrefix(model, "gpt") {
		if p, ok := r.cloudProviders["openrouter"]; ok {
			return p, "openrouter"
		}
		if p, ok := r.cloudProviders["openai"]; ok {
			return p, "openai"
		}
	}

	// 其余模型由聚合后端承接
	if p, ok := r.cloudProviders["openrouter"]; ok {
		return p, "openrouter"
	}

	if r.defaultProvider != nil {
		return r.defaultProvider, r.defaultProvider.Name()
	}

	for name, p := range r.cloudProviders {
		return p, name
	}

	return nil, ""
}

// CloudRouterMetrics 路由统计。
type CloudRouterMetrics struct {
	TotalCalls int64             `json:"total_calls"`
	CloudHits  int64             `json:"cloud_hits"`
	CacheHits  int64             `json:"cache_hits"`
	CostStatus *costs.CostStatus `json:"cost_status,omitempty"`
}

// GetMetrics 返回路由统计快照。
func (r *CloudRouter) GetMetrics() CloudRouterMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var costStatus *costs.CostStatus
	if r.tracker != nil {
		status := r.tracker.Status()
		costStatus = &status
	}

	return CloudRouterMetrics{
		TotalCalls: r.totalCalls,
		CloudHits:  r.cloudHits,
		CacheHits:  r.cacheHits,
		CostStatus: costStatus,
	}
}
