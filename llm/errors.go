package llm

import (
	"errors"
	"fmt"

	"github.com/BaSui01/agentgate/llm/circuitbreaker"
)

// 统一的网关错误码，用于对齐可重试性与上层降级策略。
type ErrorCode string

const (
	ErrBreakerOpen      ErrorCode = "GATE_BREAKER_OPEN"         // 熔断器打开，请求未到达后端
	ErrNoProvider       ErrorCode = "GATE_NO_PROVIDER"          // 路由未找到可用后端
	ErrProviderFailed   ErrorCode = "GATE_PROVIDER_ERROR"       // 后端调用失败
	ErrAllProvidersDown ErrorCode = "GATE_ALL_PROVIDERS_FAILED" // 故障转移列表耗尽
)

// Error 网关层错误，携带错误码与来源 Provider。
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	Retryable bool      `json:"retryable"`
	Err       error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewBreakerOpenError 熔断拒绝。请求未接触后端，区别于后端自身错误。
func NewBreakerOpenError(provider string) *Error {
	return &Error{
		Code:      ErrBreakerOpen,
		Message:   fmt.Sprintf("circuit breaker open for provider %s", provider),
		Provider:  provider,
		Retryable: true,
		Err:       circuitbreaker.ErrCircuitOpen,
	}
}

// NewNoProviderError 路由失败，没有符合条件的后端。
func NewNoProviderError(detail string) *Error {
	return &Error{
		Code:    ErrNoProvider,
		Message: "no provider available: " + detail,
	}
}

// NewProviderError 包装后端错误，保留来源标识。
func NewProviderError(provider string, err error) *Error {
	return &Error{
		Code:      ErrProviderFailed,
		Message:   fmt.Sprintf("provider %s failed", provider),
		Provider:  provider,
		Retryable: true,
		Err:       err,
	}
}

// NewAllProvidersFailedError 故障转移列表耗尽，包装最后一个观察到的错误。
func NewAllProvidersFailedError(lastErr error) *Error {
	return &Error{
		Code:    ErrAllProvidersDown,
		Message: "all providers failed",
		Err:     lastErr,
	}
}

// IsBreakerOpen 判断错误是否为熔断拒绝。
func IsBreakerOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrCircuitOpen)
}
