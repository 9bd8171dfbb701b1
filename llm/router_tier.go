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

// TierRouter 按 agent 档位与任务复杂度路由。
// local 档位总是走本地后端；cloud 档位按模型前缀选择云后端；
// hybrid 档位计算复杂度评分，达到 agent 阈值时走云，否则走本地。
type TierRouter struct {
	registry       *agents.Registry
	localProvider  Provider
	cloudProviders map[string]Provider
	tracker        *costs.Tracker
	cache          *cache.ResponseCache
	coalescer      *cache.Coalescer
	metrics        observability.Metrics
	logger         *zap.Logger

	mu         sync.RWMutex
	totalCalls int64
	localHits  int64
	cloudHits  int64
	cacheHits  int64
}

// TierRouterConfig 档位路由配置。
type TierRouterConfig struct {
	Registry       *agents.Registry
	LocalProvider  Provider            // 必填：本地后端
	CloudProviders map[string]Provider // 可选：anthropic/openai/openrouter
	Tracker        *costs.Tracker
	Metrics        observability.Metrics
	CacheEnabled   bool
	CacheTTL       time.Duration
	CacheMaxSize   int
	Logger         *zap.Logger
}

// NewTierRouter 创建档位路由器。
func NewTierRouter(cfg TierRouterConfig) (*TierRouter, error) {
	if cfg.LocalProvider == nil {
		return nil, NewNoProviderError("local provider is required")
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

	return &TierRouter{
		registry:       cfg.Registry,
		localProvider:  cfg.LocalProvider,
		cloudProviders: cfg.CloudProviders,
		tracker:        cfg.Tracker,
		cache:          responseCache,
		coalescer:      coalescer,
		metrics:        metrics,
		logger:         logger,
	}, nil
}

// Name 实现 Provider 接口。
func (r *TierRouter) Name() string {
	return "tier-router"
}

// Complete 按 agent 配置与复杂度路由并执行补全。
func (r *TierRouter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	r.mu.Lock()
	r.totalCalls++
	r.mu.Unlock()

	agentCfg := r.registry.Get(req.AgentID)

	// 缓存键在覆写默认参数前生成一次，Get 与 Set 共用同一个键
	var cacheKey string
	if r.cache != nil {
		cacheKey = buildCacheKey(req)
		if entry, ok := r.cache.Get(cacheKey); ok {
			if resp, ok := entry.Response.(CompletionResponse); ok {
				r.mu.Lock()
				r.cacheHits++
				r.mu.Unlock()
				r.logger.Debug("cache hit", zap.String("agent_id", req.AgentID))
				r.metrics.RecordRequest(resp.Provider, resp.Model, req.AgentID, "hit", 0)
				r.updateCacheHitRate(req.AgentID)
				return resp, nil
			}
		}
	}

	provider, name := r.selectProvider(agentCfg, req)
	if provider == nil {
		return CompletionResponse{}, NewNoProviderError(
			"no provider available for agent " + req.AgentID + " (tier=" + string(agentCfg.ModelTier) + ")")
	}

	applyAgentOverrides(&req, agentCfg)

	r.logger.Debug("routing by tier",
		zap.String("request_id", req.RequestID),
		zap.String("agent_id", req.AgentID),
		zap.String("tier", string(agentCfg.ModelTier)),
		zap.String("provider", name),
		zap.String("model", req.Model),
	)

	// 相同键的并发未命中只调用一次后端，其余请求共享结果
	if r.coalescer != nil {
		v, err, shared := r.coalescer.Do(cacheKey, func() (any, error) {
			return r.dispatch(ctx, provider, name, req, cacheKey)
		})
		if err != nil {
			return CompletionResponse{}, err
		}
		if shared {
			r.logger.Debug("request coalesced", zap.String("agent_id", req.AgentID))
		}
		return v.(CompletionResponse), nil
	}

	return r.dispatch(ctx, provider, name, req, cacheKey)
}

// dispatch 调用后端并完成指标上报、记账与缓存写入。
func (r *TierRouter) dispatch(ctx context.Context, provider Provider, name string, req CompletionRequest, cacheKey string) (CompletionResponse, error) {
	start := time.Now()
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
		r.updateCacheHitRate(req.AgentID)
	}

	return resp, nil
}

// Stream 按 agent 配置路由流式请求，不经过缓存。
func (r *TierRouter) Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	r.mu.Lock()
	r.totalCalls++
	r.mu.Unlock()

	agentCfg := r.registry.Get(req.AgentID)
	provider, name := r.selectProvider(agentCfg, req)
	if provider == nil {
		return NewNoProviderError(
			"no provider available for agent " + req.AgentID + " (tier=" + string(agentCfg.ModelTier) + ")")
	}

	applyAgentOverrides(&req, agentCfg)

	r.logger.Debug("streaming by tier",
		zap.String("agent_id", req.AgentID),
		zap.String("tier", string(agentCfg.ModelTier)),
		zap.String("provider", name),
	)

	return provider.Stream(ctx, req, emit)
}

// selectProvider 按档位选择后端。
func (r *TierRouter) selectProvider(agentCfg agents.AgentConfig, req CompletionRequest) (Provider, string) {
	switch agentCfg.ModelTier {
	case agents.TierLocal:
		r.mu.Lock()
		r.localHits++
		r.mu.Unlock()
		return r.localProvider, r.localProvider.Name()

	case agents.TierCloud:
		r.mu.Lock()
		r.cloudHits++
		r.mu.Unlock()
		return r.selectCloudProvider(req.Model)

	case agents.TierHybrid:
		complexity := AssessComplexity(req)
		if complexity >= agentCfg.ComplexityThreshold {
			r.mu.Lock()
			r.cloudHits++
			r.mu.Unlock()
			return r.selectCloudProvider(req.Model)
		}
		r.mu.Lock()
		r.localHits++
		r.mu.Unlock()
		return r.localProvider, r.localProvider.Name()

	default:
		// 未知档位走本地
		return r.localProvider, r.localProvider.Name()
	}
}

// selectCloudProvider 按模型前缀选择云后端，无匹配时按固定优先级回退。
func (r *TierRouter) selectCloudProvider(model string) (Provider, string) {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "claude"):
		if p, ok := r.cloudProviders["anthropic"]; ok {
			return p, "anthropic"
		}
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		if p, ok := r.cloudProviders["openai"]; ok {
			return p, "openai"
		}
	case strings.Contains(model, "/"):
		if p, ok := r.cloudProviders["openrouter"]; ok {
			return p, "openrouter"
		}
	}

	for _, name := range []string{"anthropic", "openai", "openrouter"} {
		if p, ok := r.cloudProviders[name]; ok {
			return p, name
		}
	}

	// 无云后端可用时回退本地
	return r.localProvider, r.localProvider.Name()
}

func (r *TierRouter) updateCacheHitRate(agentID string) {
	if r.cache == nil {
		return
	}
	r.metrics.UpdateCacheHitRate(agentID, r.cache.Stats().HitRate())
}

// applyAgentOverrides 填充请求中缺省的模型与采样参数。
func applyAgentOverrides(req *CompletionRequest, agentCfg agents.AgentConfig) {
	if agentCfg.DefaultModel != "" && req.Model == "" {
		req.Model = agentCfg.DefaultModel
	}
	if req.MaxTokens == 0 && agentCfg.MaxTokens > 0 {
		req.MaxTokens = agentCfg.MaxTokens
	}
	if req.Temperature == 0 && agentCfg.Temperature > 0 {
		req.Temperature = agentCfg.Temperature
	}
}

// TierRouterMetrics 路由统计。
type TierRouterMetrics struct {
	TotalCalls int64             `json:"total_calls"`
	LocalHits  int64             `json:"local_hits"`
	CloudHits  int64             `json:"cloud_hits"`
	CacheHits  int64             `json:"cache_hits"`
	CostStatus *costs.CostStatus `json:"cost_status,omitempty"`
}

// GetMetrics 返回路由统计快照。
func (r *TierRouter) GetMetrics() TierRouterMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var costStatus *costs.CostStatus
	if r.tracker != nil {
		status := r.tracker.Status()
		costStatus = &status
	}

	return TierRouterMetrics{
		TotalCalls: r.totalCalls,
		LocalHits:  r.localHits,
		CloudHits:  r.cloudHits,
		CacheHits:  r.cacheHits,
		CostStatus: costStatus,
	}
}
