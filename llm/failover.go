package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/BaSui01/agentgate/llm/circuitbreaker"
	"github.com/BaSui01/agentgate/llm/costs"
	"go.uber.org/zap"
)

// FailoverProvider 多后端故障转移编排器。
// 持有一个有序的后端列表，每个后端各自包装一个熔断器；
// 按顺序尝试，跳过熔断打开的后端，直到某个后端成功。
type FailoverProvider struct {
	providers []*BreakerProvider
	tracker   *costs.Tracker
	logger    *zap.Logger

	mu         sync.RWMutex
	lastUsed   int
	totalCalls int64
	failovers  int64 // 非首位后端自身失败的次数；跳过打开的熔断器不计入
}

// FailoverConfig 故障转移配置。
type FailoverConfig struct {
	Providers     []Provider
	Tracker       *costs.Tracker
	CircuitConfig circuitbreaker.Config
	Logger        *zap.Logger
}

// NewFailoverProvider 创建故障转移编排器，按给定顺序包装每个后端。
func NewFailoverProvider(cfg FailoverConfig) (*FailoverProvider, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("at least one provider required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wrapped := make([]*BreakerProvider, len(cfg.Providers))
	for i, p := range cfg.Providers {
		wrapped[i] = NewBreakerProvider(p, cfg.CircuitConfig, logger)
	}

	return &FailoverProvider{
		providers: wrapped,
		tracker:   cfg.Tracker,
		logger:    logger,
	}, nil
}

func (fp *FailoverProvider) Name() string {
	if len(fp.providers) > 0 {
		return fp.providers[0].Name() + "-failover"
	}
	return "failover"
}

// Complete 按列表顺序尝试后端。
// 熔断打开的后端直接跳过；失败记录进该后端的熔断器后继续下一个；
// 全部跳过或失败时返回包装了最后一次失败的聚合错误。
func (fp *FailoverProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	fp.mu.Lock()
	fp.totalCalls++
	fp.mu.Unlock()

	var lastErr error
	for i, provider := range fp.providers {
		if provider.State() == circuitbreaker.StateOpen {
			continue
		}

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			lastErr = err
			fp.logger.Warn("provider failed",
				zap.String("provider", provider.Name()),
				zap.Error(err),
			)

			if i > 0 {
				fp.mu.Lock()
				fp.failovers++
				fp.mu.Unlock()
			}
			continue
		}

		if fp.tracker != nil {
			cost := fp.tracker.TrackUsage(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			fp.logger.Debug("request cost tracked",
				zap.String("model", resp.Model),
				zap.Float64("cost_usd", cost),
				zap.Int("tokens", resp.Usage.TotalTokens),
			)
		}

		fp.mu.Lock()
		fp.lastUsed = i
		fp.mu.Unlock()

		return resp, nil
	}

	return CompletionResponse{}, NewAllProvidersFailedError(lastErr)
}

// Stream 流式版本，语义与 Complete 相同。
func (fp *FailoverProvider) Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	fp.mu.Lock()
	fp.totalCalls++
	fp.mu.Unlock()

	var lastErr error
	for i, provider := range fp.providers {
		if provider.State() == circuitbreaker.StateOpen {
			continue
		}

		err := provider.Stream(ctx, req, emit)
		if err != nil {
			lastErr = err
			fp.logger.Warn("provider stream failed",
				zap.String("provider", provider.Name()),
				zap.Error(err),
			)

			if i > 0 {
				fp.mu.Lock()
				fp.failovers++
				fp.mu.Unlock()
			}
			continue
		}

		fp.mu.Lock()
		fp.lastUsed = i
		fp.mu.Unlock()

		return nil
	}

	return NewAllProvidersFailedError(lastErr)
}

// ResetBreaker 按后端标识重置对应的熔断器，返回是否找到。
func (fp *FailoverProvider) ResetBreaker(providerName string) bool {
	for _, p := range fp.providers {
		if p.Name() == providerName {
			p.ResetBreaker()
			return true
		}
	}
	return false
}

// FailoverMetrics 编排器指标快照。
type FailoverMetrics struct {
	TotalCalls     int64
	Failovers      int64
	CircuitMetrics map[string]circuitbreaker.Metrics
	CostStatus     *costs.CostStatus
}

// GetMetrics 返回编排器与各后端熔断器的指标。
func (fp *FailoverProvider) GetMetrics() FailoverMetrics {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	circuits := make(map[string]circuitbreaker.Metrics, len(fp.providers))
	for _, p := range fp.providers {
		circuits[p.Name()] = p.BreakerMetrics()
	}

	var costStatus *costs.CostStatus
	if fp.tracker != nil {
		status := fp.tracker.Status()
		costStatus = &status
	}

	return FailoverMetrics{
		TotalCalls:     fp.totalCalls,
		Failovers:      fp.failovers,
		CircuitMetrics: circuits,
		CostStatus:     costStatus,
	}
}
