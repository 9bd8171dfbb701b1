package costs

import (
	"sync"
	"time"
)

// CostSnapshot 某一时刻成本状态的不可变副本。
type CostSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	DailySpend   float64   `json:"daily_spend"`
	MonthlySpend float64   `json:"monthly_spend"`
	TotalSpend   float64   `json:"total_spend"`
	RequestCount int64     `json:"request_count"`
	TokenCount   int64     `json:"token_count"`
}

// TrendMetrics 单个时间窗口内的变化指标。空窗口时全部为零。
type TrendMetrics struct {
	SpendChange        float64 `json:"spend_change"`
	RequestChange      int64   `json:"request_change"`
	TokenChange        int64   `json:"token_change"`
	Duration           float64 `json:"duration_hours"`
	AvgSpendPerHour    float64 `json:"avg_spend_per_hour"`
	AvgRequestsPerHour float64 `json:"avg_requests_per_hour"`
}

// TrendAnalysis 各时间窗口的趋势汇总。
type TrendAnalysis struct {
	Last1Hour   TrendMetrics `json:"last_1_hour"`
	Last24Hours TrendMetrics `json:"last_24_hours"`
	Last7Days   TrendMetrics `json:"last_7_days"`
}

// CostPrediction 月末成本的线性外推。
type CostPrediction struct {
	PredictedMonthlyTotal float64 `json:"predicted_monthly_total"`
	CurrentMonthlySpend   float64 `json:"current_monthly_spend"`
	DaysElapsed           float64 `json:"days_elapsed"`
	DaysRemaining         float64 `json:"days_remaining"`
	DailyAverage          float64 `json:"daily_average"`
	Confidence            float64 `json:"confidence"` // 0.0 - 1.0
	WillExceedBudget      bool    `json:"will_exceed_budget"`
	PercentOfBudget       float64 `json:"percent_of_budget"`
	MonthlyBudget         float64 `json:"monthly_budget"`
}

// CostAlert 消费告警，按需计算，不存储。
type CostAlert struct {
	Level     string  `json:"level"`     // info | warning | critical
	Type      string  `json:"type"`      // daily_budget_75, monthly_budget_90, ...
	Message   string  `json:"message"`
	Percent   float64 `json:"percent"`
	Spend     float64 `json:"spend"`
	Budget    float64 `json:"budget"`
	Threshold float64 `json:"threshold"`
}

// Analytics 成本分析：快照历史、趋势、月末预测与阈值告警。
// 没有内部定时器，快照由外部按节奏调用 RecordSnapshot 驱动。
type Analytics struct {
	tracker *Tracker

	mu      sync.RWMutex
	history []CostSnapshot // 按时间升序（最旧在前）

	maxHistorySize   int
	snapshotInterval time.Duration
	lastSnapshot     time.Time

	now func() time.Time // 测试注入
}

// AnalyticsConfig 成本分析配置。
type AnalyticsConfig struct {
	Tracker          *Tracker
	MaxHistorySize   int           // 保留的最大快照数（默认 1440 = 24h @ 1min）
	SnapshotInterval time.Duration // 快照最小间隔（默认 1 分钟）
}

// NewAnalytics 创建成本分析器。
func NewAnalytics(cfg AnalyticsConfig) *Analytics {
	if cfg.MaxHistorySize == 0 {
		cfg.MaxHistorySize = 1440
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = time.Minute
	}

	return &Analytics{
		tracker:          cfg.Tracker,
		history:          make([]CostSnapshot, 0, cfg.MaxHistorySize),
		maxHistorySize:   cfg.MaxHistorySize,
		snapshotInterval: cfg.SnapshotInterval,
		now:              time.Now,
	}
}

// RecordSnapshot 记录一次快照。
// 距上次快照不足 SnapshotInterval 时为 no-op；首次调用总是记录。
// 历史超过上限时丢弃最旧的条目。
func (a *Analytics) RecordSnapshot() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if !a.lastSnapshot.IsZero() && now.Sub(a.lastSnapshot) < a.snapshotInterval {
		return
	}

	status := a.tracker.Status()
	a.history = append(a.history, CostSnapshot{
		Timestamp:    now,
		DailySpend:   status.DailySpend,
		MonthlySpend: status.MonthlySpend,
		TotalSpend:   status.TotalSpend,
		RequestCount: status.RequestCount,
		TokenCount:   status.TokenCount,
	})
	a.lastSnapshot = now

	if len(a.history) > a.maxHistorySize {
		a.history = a.history[len(a.history)-a.maxHistorySize:]
	}
}

// HistoricalData 返回时间戳 ≥ since 的快照，保持存储顺序（最旧在前）。
func (a *Analytics) HistoricalData(since time.Time) []CostSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.filterSince(since)
}

// Trends 计算最近 1 小时 / 24 小时 / 7 天的消费趋势。
func (a *Analytics) Trends() TrendAnalysis {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	return TrendAnalysis{
		Last1Hour:   trendMetrics(a.filterSince(now.Add(-1 * time.Hour))),
		Last24Hours: trendMetrics(a.filterSince(now.Add(-24 * time.Hour))),
		Last7Days:   trendMetrics(a.filterSince(now.Add(-7 * 24 * time.Hour))),
	}
}

// PredictMonthlyCost 基于当月日均消费做线性外推。
func (a *Analytics) PredictMonthlyCost() CostPrediction {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.predictLocked()
}

// Alerts 比较当前日/月消费百分比与阈值，返回当前生效的告警。
// 日阈值 75/90/100，月阈值 50/75/90/100。阈值彼此独立：
// 越过多个阈值时各自的告警同时出现，预测告警亦独立叠加。
func (a *Analytics) Alerts() []CostAlert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	status := a.tracker.Status()
	alerts := make([]CostAlert, 0)

	if status.DailyBudget > 0 {
		percent := status.DailyPercent
		if percent >= 75 {
			alerts = append(alerts, CostAlert{
				Level: "info", Type: "daily_budget_75",
				Message: "Daily budget at 75%",
				Percent: percent, Spend: status.DailySpend, Budget: status.DailyBudget, Threshold: 75,
			})
		}
		if percent >= 90 {
			alerts = append(alerts, CostAlert{
				Level: "warning", Type: "daily_budget_90",
				Message: "Daily budget at 90%",
				Percent: percent, Spend: status.DailySpend, Budget: status.DailyBudget, Threshold: 90,
			})
		}
		if percent >= 100 {
			alerts = append(alerts, CostAlert{
				Level: "critical", Type: "daily_budget_exceeded",
				Message: "Daily budget exceeded",
				Percent: percent, Spend: status.DailySpend, Budget: status.DailyBudget, Threshold: 100,
			})
		}
	}

	if status.MonthlyBudget > 0 {
		percent := status.MonthlyPercent
		if percent >= 50 {
			alerts = append(alerts, CostAlert{
				Level: "info", Type: "monthly_budget_50",
				Message: "Monthly budget at 50%",
				Percent: percent, Spend: status.MonthlySpend, Budget: status.MonthlyBudget, Threshold: 50,
			})
		}
		if percent >= 75 {
			alerts = append(alerts, CostAlert{
				Level: "info", Type: "monthly_budget_75",
				Message: "Monthly budget at 75%",
				Percent: percent, Spend: status.MonthlySpend, Budget: status.MonthlyBudget, Threshold: 75,
			})
		}
		if percent >= 90 {
			alerts = append(alerts, CostAlert{
				Level: "warning", Type: "monthly_budget_90",
				Message: "Monthly budget at 90%",
				Percent: percent, Spend: status.MonthlySpend, Budget: status.MonthlyBudget, Threshold: 90,
			})
		}
		if percent >= 100 {
			alerts = append(alerts, CostAlert{
				Level: "critical", Type: "monthly_budget_exceeded",
				Message: "Monthly budget exceeded",
				Percent: percent, Spend: status.MonthlySpend, Budget: status.MonthlyBudget, Threshold: 100,
			})
		}
	}

	prediction := a.predictLocked()
	if prediction.WillExceedBudget && status.MonthlyBudget > 0 {
		alerts = append(alerts, CostAlert{
			Level: "warning", Type: "predicted_budget_exceeded",
			Message: "Predicted to exceed monthly budget",
			Percent: prediction.PercentOfBudget, Spend: prediction.PredictedMonthlyTotal,
			Budget: status.MonthlyBudget, Threshold: 100,
		})
	}

	return alerts
}

// filterSince 调用方必须持有读锁。
func (a *Analytics) filterSince(since time.Time) []CostSnapshot {
	result := make([]CostSnapshot, 0)
	for _, snapshot := range a.history {
		if !snapshot.Timestamp.Before(since) {
			result = append(result, snapshot)
		}
	}
	return result
}

// predictLocked 调用方必须持有锁。
func (a *Analytics) predictLocked() CostPrediction {
	now := a.now()
	status := a.tracker.Status()

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastOfMonth := firstOfMonth.AddDate(0, 1, 0).Add(-time.Second)
	daysInMonth := float64(lastOfMonth.Day())
	daysElapsed := float64(now.Day()) + float64(now.Hour())/24.0
	daysRemaining := daysInMonth - daysElapsed

	dailyAverage := status.MonthlySpend / daysElapsed
	predictedTotal := status.MonthlySpend + dailyAverage*daysRemaining

	confidence := calculateConfidence(daysElapsed, len(a.history))

	willExceedBudget := status.MonthlyBudget > 0 && predictedTotal > status.MonthlyBudget
	percentOfBudget := 0.0
	if status.MonthlyBudget > 0 {
		percentOfBudget = (predictedTotal / status.MonthlyBudget) * 100
	}

	return CostPrediction{
		PredictedMonthlyTotal: predictedTotal,
		CurrentMonthlySpend:   status.MonthlySpend,
		DaysElapsed:           daysElapsed,
		DaysRemaining:         daysRemaining,
		DailyAverage:          dailyAverage,
		Confidence:            confidence,
		WillExceedBudget:      willExceedBudget,
		PercentOfBudget:       percentOfBudget,
		MonthlyBudget:         status.MonthlyBudget,
	}
}

// trendMetrics 取窗口内时间最早与最晚的快照计算变化量。
func trendMetrics(snapshots []CostSnapshot) TrendMetrics {
	if len(snapshots) == 0 {
		return TrendMetrics{}
	}

	first := snapshots[0]
	last := snapshots[0]
	for _, s := range snapshots[1:] {
		if s.Timestamp.Before(first.Timestamp) {
			first = s
		}
		if s.Timestamp.After(last.Timestamp) {
			last = s
		}
	}

	spendChange := last.TotalSpend - first.TotalSpend
	requestChange := last.RequestCount - first.RequestCount
	tokenChange := last.TokenCount - first.TokenCount
	duration := last.Timestamp.Sub(first.Timestamp).Hours()

	m := TrendMetrics{
		SpendChange:   spendChange,
		RequestChange: requestChange,
		TokenChange:   tokenChange,
		Duration:      duration,
	}
	if duration > 0 {
		m.AvgSpendPerHour = spendChange / duration
		m.AvgRequestsPerHour = float64(requestChange) / duration
	}
	return m
}

// calculateConfidence 置信度启发式：0.7 * min(天数/7, 1) + 0.3 * min(快照数/1440, 1)。
func calculateConfidence(daysElapsed float64, historySize int) float64 {
	dayConfidence := daysElapsed / 7.0
	if dayConfidence > 1.0 {
		dayConfidence = 1.0
	}

	historyConfidence := float64(historySize) / 1440.0
	if historyConfidence > 1.0 {
		historyConfidence = 1.0
	}

	return dayConfidence*0.7 + historyConfidence*0.3
}
