// =============================================================================
// 📦 AgentGate 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Routing:   DefaultRoutingConfig(),
		Budget:    DefaultBudgetConfig(),
		Cache:     DefaultCacheConfig(),
		Breaker:   DefaultBreakerConfig(),
		Agents:    DefaultAgentsConfig(),
		Analytics: DefaultAnalyticsConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultRoutingConfig 返回默认路由配置
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		Strategy:            "static",
		DefaultProvider:     "openrouter",
		FailoverEnabled:     false,
		ComplexityThreshold: 0.5,
	}
}

// DefaultBudgetConfig 返回默认预算配置（默认不限制）
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DailyUSD:   0,
		MonthlyUSD: 0,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		MaxSize: 1024,
		TTL:     5 * time.Minute,
	}
}

// DefaultBreakerConfig 返回默认熔断器配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
	}
}

// DefaultAgentsConfig 返回默认 Agent 注册表配置
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		ConfigDir: "",
	}
}

// DefaultAnalyticsConfig 返回默认成本分析配置
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		SnapshotInterval: time.Minute,
		MaxHistorySize:   1440,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
