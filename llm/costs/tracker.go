package costs

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CostStatus 当前消费状态的派生视图，不独立存储。
type CostStatus struct {
	DailySpend     float64 `json:"daily_spend"`
	DailyBudget    float64 `json:"daily_budget"`
	DailyRemaining float64 `json:"daily_remaining"`
	DailyPercent   float64 `json:"daily_percent"`

	MonthlySpend     float64 `json:"monthly_spend"`
	MonthlyBudget    float64 `json:"monthly_budget"`
	MonthlyRemaining float64 `json:"monthly_remaining"`
	MonthlyPercent   float64 `json:"monthly_percent"`

	TotalSpend   float64 `json:"total_spend"`
	RequestCount int64   `json:"request_count"`
	TokenCount   int64   `json:"token_count"`
}

// Tracker 成本账本：记录 token 用量与派生消费，按日/月滚动。
// 周期内各项累计值单调不减；跨周期只清零对应周期的累计，终身累计不受影响。
type Tracker struct {
	pricing *Pricing
	logger  *zap.Logger

	mu sync.Mutex

	dailyBudget   float64
	monthlyBudget float64

	dailySpend   float64
	monthlySpend float64
	totalSpend   float64

	lastDayReset   time.Time
	lastMonthReset time.Time

	requestCount int64
	tokenCount   int64

	now func() time.Time // 测试注入
}

// TrackerConfig 账本配置。预算 ≤ 0 表示不启用该周期的预算检查。
type TrackerConfig struct {
	DailyBudgetUSD   float64
	MonthlyBudgetUSD float64
	Pricing          *Pricing
	Logger           *zap.Logger
}

// NewTracker 创建成本账本。
func NewTracker(cfg TrackerConfig) *Tracker {
	pricing := cfg.Pricing
	if pricing == nil {
		pricing = NewPricing()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := time.Now()
	return &Tracker{
		pricing:        pricing,
		logger:         logger,
		dailyBudget:    cfg.DailyBudgetUSD,
		monthlyBudget:  cfg.MonthlyBudgetUSD,
		lastDayReset:   now,
		lastMonthReset: now,
		now:            time.Now,
	}
}

// TrackUsage 记录一次请求的 token 用量并返回计算出的成本。
func (t *Tracker) TrackUsage(model string, promptTokens, completionTokens int) float64 {
	cost := t.pricing.Calculate(model, promptTokens, completionTokens)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetPeriods()

	t.dailySpend += cost
	t.monthlySpend += cost
	t.totalSpend += cost
	t.requestCount++
	t.tokenCount += int64(promptTokens + completionTokens)

	return cost
}

// CheckBudget 检查加上预估成本后是否仍在预算内。
// 预算未配置（≤ 0）时总是放行。
// 注意：路由层不会在分发前调用本方法，预算只被跟踪与上报，
// 不自动阻断请求；需要阻断的调用方自行检查。
func (t *Tracker) CheckBudget(estimatedCost float64) (allowed bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetPeriods()

	if t.dailyBudget > 0 && t.dailySpend+estimatedCost > t.dailyBudget {
		return false, "daily budget exceeded"
	}
	if t.monthlyBudget > 0 && t.monthlySpend+estimatedCost > t.monthlyBudget {
		return false, "monthly budget exceeded"
	}
	return true, ""
}

// Status 返回当前消费状态。
// 读路径与写路径一致地执行周期滚动，周期边界后的读取不会看到陈旧累计。
func (t *Tracker) Status() CostStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetPeriods()

	return CostStatus{
		DailySpend:     t.dailySpend,
		DailyBudget:    t.dailyBudget,
		DailyRemaining: max(0, t.dailyBudget-t.dailySpend),
		DailyPercent:   safePercent(t.dailySpend, t.dailyBudget),

		MonthlySpend:     t.monthlySpend,
		MonthlyBudget:    t.monthlyBudget,
		MonthlyRemaining: max(0, t.monthlyBudget-t.monthlySpend),
		MonthlyPercent:   safePercent(t.monthlySpend, t.monthlyBudget),

		TotalSpend:   t.totalSpend,
		RequestCount: t.requestCount,
		TokenCount:   t.tokenCount,
	}
}

// maybeResetPeriods 跨周期时清零对应周期的累计并推进标记。
// 调用方必须持有 t.mu。
func (t *Tracker) maybeResetPeriods() {
	now := t.now()

	if now.YearDay() != t.lastDayReset.YearDay() || now.Year() != t.lastDayReset.Year() {
		t.logger.Info("daily spend reset",
			zap.Float64("previous_daily_spend", t.dailySpend),
		)
		t.dailySpend = 0
		t.lastDayReset = now
	}

	if now.Month() != t.lastMonthReset.Month() || now.Year() != t.lastMonthReset.Year() {
		t.logger.Info("monthly spend reset",
			zap.Float64("previous_monthly_spend", t.monthlySpend),
		)
		t.monthlySpend = 0
		t.lastMonthReset = now
	}
}

// safePercent 预算 ≤ 0 时百分比定义为 0。
func safePercent(spend, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return (spend / budget) * 100
}
