package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen 熔断拒绝。被拒绝的请求从未到达被包装的后端。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config 熔断器配置
type Config struct {
	// FailureThreshold 连续失败次数阈值（触发熔断）
	FailureThreshold int

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen）
	ResetTimeout time.Duration

	// OnStateChange 状态变更回调
	OnStateChange func(from State, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
	}
}

// Breaker 单个后端的熔断器。
// 计数器与状态只在自身锁内读写，其他组件不得直接观察或修改。
type Breaker struct {
	config Config
	logger *zap.Logger

	mu            sync.RWMutex
	state         State
	failures      int       // 累计失败次数
	lastFailure   time.Time // 最后失败时间
	successStreak int       // 连续成功次数（半开恢复用）
}

// Metrics 熔断器内部计数的时点快照。
type Metrics struct {
	State         State
	Failures      int
	LastFailure   time.Time
	SuccessStreak int
}

// New 创建熔断器
func New(config Config, logger *zap.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Breaker{
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Allow 调用前检查。
// Closed 总是放行；Open 在 ResetTimeout 后放行并进入 HalfOpen（成功计数清零）；
// HalfOpen 总是放行，探测就是这样发生的。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.lastFailure) > b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.successStreak = 0
			b.logger.Info("熔断器进入半开状态")
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		return nil
	}
	return nil
}

// Record 记录一次调用结果。
// 失败：计数、记录时间、清零成功序列；达到阈值时在任何状态下都会打开，
// 因此半开状态下的探测失败会立即重新熔断。
// 成功：累加成功序列；半开状态需要连续 2 次成功才恢复关闭，单次成功不够。
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		b.successStreak = 0

		if b.failures >= b.config.FailureThreshold {
			if b.state != StateOpen {
				b.logger.Warn("熔断器打开",
					zap.Int("failures", b.failures),
					zap.Int("threshold", b.config.FailureThreshold),
				)
			}
			b.setState(StateOpen)
		}
		return
	}

	b.successStreak++
	if b.state == StateHalfOpen && b.successStreak >= 2 {
		b.logger.Info("熔断器恢复正常",
			zap.Int("success_streak", b.successStreak),
		)
		b.setState(StateClosed)
		b.failures = 0
	}
}

// State 获取当前状态
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Reset 手动恢复：强制关闭并清零所有计数器。
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldState := b.state
	b.setState(StateClosed)
	b.failures = 0
	b.successStreak = 0

	b.logger.Info("熔断器已重置",
		zap.String("from_state", oldState.String()),
	)
}

// Metrics 返回内部计数快照。
func (b *Breaker) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Metrics{
		State:         b.state,
		Failures:      b.failures,
		LastFailure:   b.lastFailure,
		SuccessStreak: b.successStreak,
	}
}

// setState 设置状态并触发回调
func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(oldState, newState)
	}
}
