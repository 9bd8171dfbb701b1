package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentgate/llm/costs"
)

// routeRule 一条路由规则：谓词 + 按优先级排列的候选后端。
// 规则自上而下求值，首个谓词命中的规则生效；命中后只在该规则的
// 候选后端中选择，候选全部缺席时落入全局回退表，不再继续扫描规则。
type routeRule struct {
	name       string   // 规则名，用于日志
	prefixes   []string // 模型名前缀（小写）
	contains   []string // 模型名子串（小写）
	targets    []string // 候选后端名，按优先级
	deprecated bool     // 命中时告警：直连已废弃
}

func (r routeRule) matches(model string) bool {
	for _, p := range r.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	for _, c := range r.contains {
		if strings.Contains(model, c) {
			return true
		}
	}
	return false
}

// defaultRouteRules 静态路由表。
// 注意 "mistral" 前缀被上方的本地模型规则先命中，独立的 mistral
// 规则只对 mixtral/codestral/mistralai/ 生效，保持既有优先级不变。
func defaultRouteRules() []routeRule {
	return []routeRule{
		{
			name:     "cursor",
			prefixes: []string{"cursor"},
			targets:  []string{"cursor"},
		},
		{
			name: "local",
			prefixes: []string{
				"llama", "gemma", "mistral", "codellama", "phi",
				"qwen", "deepseek", "starcoder", "ollama/", "local/",
			},
			targets: []string{"ollama"},
		},
		{
			name:     "glm",
			prefixes: []string{"glm", "thudm/"},
			targets:  []string{"openrouter"},
		},
		{
			name:     "mistral",
			prefixes: []string{"mistral", "mixtral", "codestral", "mistralai/"},
			targets:  []string{"mistral", "openrouter"},
		},
		{
			name: "huggingface",
			prefixes: []string{
				"huggingface/", "hf/", "qwen/", "meta-llama/",
				"bigcode/", "codellama/", "microsoft/",
			},
			targets: []string{"huggingface", "openrouter"},
		},
		{
			name:     "openrouter",
			prefixes: []string{"openrouter/"},
			contains: []string{"/"},
			targets:  []string{"openrouter"},
		},
		{
			name:       "anthropic",
			prefixes:   []string{"claude", "anthropic/"},
			targets:    []string{"openrouter", "anthropic"},
			deprecated: true,
		},
		{
			name: "openai",
			prefixes: []string{
				"gpt", "o1", "o3", "openai/",
				"text-embedding", "whisper", "dall-e", "tts",
			},
			targets:    []string{"openrouter", "openai"},
			deprecated: true,
		},
	}
}

// defaultFallbackOrder 无规则命中或候选缺席时的全局回退顺序。
// openai/anthropic 直连已废弃，不在回退表中。
func defaultFallbackOrder() []string {
	return []string{"cursor", "ollama", "huggingface", "openrouter"}
}

// StaticRouter 按模型名路由请求到对应后端。
type StaticRouter struct {
	providers map[string]Provider
	rules     []routeRule
	fallback  []string
	tracker   *costs.Tracker
	logger    *zap.Logger

	mu         sync.RWMutex
	totalCalls int64
	routeHits  map[string]int64
}

// StaticRouterConfig 静态路由配置。
type StaticRouterConfig struct {
	Providers []Provider
	Tracker   *costs.Tracker // 可为 nil，此时不记账
	Logger    *zap.Logger
}

// NewStaticRouter 创建静态路由器。至少需要一个后端。
func NewStaticRouter(cfg StaticRouterConfig) (*StaticRouter, error) {
	if len(cfg.Providers) == 0 {
		return nil, NewNoProviderError("at least one provider required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	providers := make(map[string]Provider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p.Name()] = p
		logger.Info("router registered provider", zap.String("provider", p.Name()))
	}

	return &StaticRouter{
		providers: providers,
		rules:     defaultRouteRules(),
		fallback:  defaultFallbackOrder(),
		tracker:   cfg.Tracker,
		logger:    logger,
		routeHits: make(map[string]int64),
	}, nil
}

// Name 实现 Provider 接口，路由器本身可作为后端组合。
func (r *StaticRouter) Name() string {
	return "static-router"
}

// resolve 按路由表解析后端。返回后端与其名字；无可用后端时返回 nil。
func (r *StaticRouter) resolve(model string) (Provider, string) {
	model = strings.ToLower(model)

	for _, rule := range r.rules {
		if !rule.matches(model) {
			continue
		}
		if rule.deprecated {
			r.logger.Warn("direct vendor access is deprecated, preferring aggregator",
				zap.String("rule", rule.name),
				zap.String("model", model),
			)
		}
		for _, target := range rule.targets {
			if p, ok := r.providers[target]; ok {
				return p, target
			}
		}
		break
	}

	for _, name := range r.fallback {
		if p, ok := r.providers[name]; ok {
			r.logger.Info("no specific route for model, falling back",
				zap.String("model", model),
				zap.String("provider", name),
			)
			return p, name
		}
	}

	return nil, ""
}

// Complete 路由并执行一次补全。
func (r *StaticRouter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	r.mu.Lock()
	r.totalCalls++
	r.mu.Unlock()

	provider, name := r.resolve(req.Model)
	if provider == nil {
		return CompletionResponse{}, NewNoProviderError("no provider available for model " + req.Model)
	}

	r.mu.Lock()
	r.routeHits[name]++
	r.mu.Unlock()

	r.logger.Debug("routing request",
		zap.String("request_id", req.RequestID),
		zap.String("model", req.Model),
		zap.String("provider", name),
	)

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return CompletionResponse{}, NewProviderError(name, err)
	}

	if r.tracker != nil {
		cost := r.tracker.TrackUsage(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		r.logger.Debug("request cost tracked",
			zap.String("request_id", req.RequestID),
			zap.String("model", resp.Model),
			zap.String("provider", name),
			zap.Float64("cost_usd", cost),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
		)
	}

	return resp, nil
}

// Stream 路由并执行一次流式补全。
func (r *StaticRouter) Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	r.mu.Lock()
	r.totalCalls++
	r.mu.Unlock()

	provider, name := r.resolve(req.Model)
	if provider == nil {
		return NewNoProviderError("no provider available for model " + req.Model)
	}

	r.mu.Lock()
	r.routeHits[name]++
	r.mu.Unlock()

	r.logger.Debug("streaming request",
		zap.String("request_id", req.RequestID),
		zap.String("model", req.Model),
		zap.String("provider", name),
	)

	return provider.Stream(ctx, req, emit)
}

// StaticRouterMetrics 路由统计。
type StaticRouterMetrics struct {
	TotalCalls int64             `json:"total_calls"`
	RouteHits  map[string]int64  `json:"route_hits"`
	CostStatus *costs.CostStatus `json:"cost_status,omitempty"`
}

// GetMetrics 返回路由统计快照。
func (r *StaticRouter) GetMetrics() StaticRouterMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hits := make(map[string]int64, len(r.routeHits))
	for k, v := range r.routeHits {
		hits[k] = v
	}

	var costStatus *costs.CostStatus
	if r.tracker != nil {
		status := r.tracker.Status()
		costStatus = &status
	}

	return StaticRouterMetrics{
		TotalCalls: r.totalCalls,
		RouteHits:  hits,
		CostStatus: costStatus,
	}
}
