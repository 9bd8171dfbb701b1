package llm

import (
	"context"

	"github.com/BaSui01/agentgate/llm/circuitbreaker"
	"go.uber.org/zap"
)

// BreakerProvider 带熔断保护的 Provider 包装器。
// 遵循装饰器模式：增强原有 Provider 而不修改其代码。
// 被熔断拒绝的请求不会到达底层后端，以独立的"熔断打开"错误上报。
type BreakerProvider struct {
	provider Provider
	breaker  *circuitbreaker.Breaker
}

// NewBreakerProvider 用熔断器包装 Provider。
func NewBreakerProvider(provider Provider, cfg circuitbreaker.Config, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerProvider{
		provider: provider,
		breaker:  circuitbreaker.New(cfg, logger.With(zap.String("provider", provider.Name()))),
	}
}

// Name 实现 Provider.Name，透传底层标识。
func (bp *BreakerProvider) Name() string {
	return bp.provider.Name()
}

// Complete 实现 Provider.Complete。
func (bp *BreakerProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := bp.breaker.Allow(); err != nil {
		return CompletionResponse{}, NewBreakerOpenError(bp.provider.Name())
	}

	resp, err := bp.provider.Complete(ctx, req)
	bp.breaker.Record(err)
	return resp, err
}

// Stream 实现 Provider.Stream。
func (bp *BreakerProvider) Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	if err := bp.breaker.Allow(); err != nil {
		return NewBreakerOpenError(bp.provider.Name())
	}

	err := bp.provider.Stream(ctx, req, emit)
	bp.breaker.Record(err)
	return err
}

// State 返回熔断器当前状态。
func (bp *BreakerProvider) State() circuitbreaker.State {
	return bp.breaker.State()
}

// ResetBreaker 管理接口：强制恢复熔断器。
func (bp *BreakerProvider) ResetBreaker() {
	bp.breaker.Reset()
}

// BreakerMetrics 返回熔断器计数快照。
func (bp *BreakerProvider) BreakerMetrics() circuitbreaker.Metrics {
	return bp.breaker.Metrics()
}
