package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/agentgate/agents"
	"github.com/BaSui01/agentgate/config"
	"github.com/BaSui01/agentgate/internal/server"
	"github.com/BaSui01/agentgate/llm"
	"github.com/BaSui01/agentgate/llm/circuitbreaker"
	"github.com/BaSui01/agentgate/llm/costs"
	"github.com/BaSui01/agentgate/llm/observability"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 AgentGate 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 核心组件
	registry  *agents.Registry
	tracker   *costs.Tracker
	analytics *costs.Analytics
	estimator *costs.Estimator
	router    llm.Provider

	// 具体路由器引用，用于 /v1/router/metrics
	staticRouter *llm.StaticRouter
	tierRouter   *llm.TierRouter
	cloudRouter  *llm.CloudRouter
	failover     *llm.FailoverProvider

	// 指标
	promRegistry *prometheus.Registry

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 快照任务生命周期
	snapshotCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 装配所有组件并创建服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	// 1. Agent 注册表
	s.registry = agents.NewRegistry()
	if cfg.Agents.ConfigDir != "" {
		if err := s.registry.LoadFromDir(cfg.Agents.ConfigDir); err != nil {
			logger.Warn("Failed to load agent configs, using defaults",
				zap.String("dir", cfg.Agents.ConfigDir),
				zap.Error(err))
		} else {
			logger.Info("Agent configs loaded",
				zap.String("dir", cfg.Agents.ConfigDir),
				zap.Strings("agents", s.registry.List()))
		}
	}

	// 2. 成本账本与分析
	s.tracker = costs.NewTracker(costs.TrackerConfig{
		DailyBudgetUSD:   cfg.Budget.DailyUSD,
		MonthlyBudgetUSD: cfg.Budget.MonthlyUSD,
		Logger:           logger,
	})
	s.analytics = costs.NewAnalytics(costs.AnalyticsConfig{
		Tracker:          s.tracker,
		SnapshotInterval: cfg.Analytics.SnapshotInterval,
		MaxHistorySize:   cfg.Analytics.MaxHistorySize,
	})
	s.estimator = costs.NewEstimator()

	// 3. Prometheus 指标
	s.promRegistry = prometheus.NewRegistry()
	metrics := observability.NewPromMetrics(s.promRegistry)

	// 4. 路由器
	if err := s.buildRouter(metrics); err != nil {
		return nil, err
	}

	return s, nil
}

// buildRouter 按配置的策略装配路由器，必要时外包故障转移
func (s *Server) buildRouter(metrics observability.Metrics) error {
	cfg := s.cfg

	// 暂以回声 Provider 占位，后端接入通过统一的 Provider 接口完成
	mock := func(name, model string) llm.Provider {
		return llm.MockProvider{ProviderName: name, DefaultModel: model}
	}
	cloudProviders := map[string]llm.Provider{
		"anthropic":  mock("anthropic", "claude-3-5-sonnet"),
		"openai":     mock("openai", "gpt-4o-mini"),
		"openrouter": mock("openrouter", "openrouter/auto"),
	}

	var router llm.Provider
	switch cfg.Routing.Strategy {
	case "tier":
		tr, err := llm.NewTierRouter(llm.TierRouterConfig{
			Registry:       s.registry,
			LocalProvider:  mock("ollama", "llama3"),
			CloudProviders: cloudProviders,
			Tracker:        s.tracker,
			Metrics:        metrics,
			CacheEnabled:   cfg.Cache.Enabled,
			CacheTTL:       cfg.Cache.TTL,
			CacheMaxSize:   cfg.Cache.MaxSize,
			Logger:         s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to build tier router: %w", err)
		}
		s.tierRouter = tr
		router = tr

	case "cloud":
		defaultProvider, ok := cloudProviders[cfg.Routing.DefaultProvider]
		if !ok {
			defaultProvider = mock(cfg.Routing.DefaultProvider, "")
		}
		cr, err := llm.NewCloudRouter(llm.CloudRouterConfig{
			Registry:        s.registry,
			CloudProviders:  cloudProviders,
			DefaultProvider: defaultProvider,
			Tracker:         s.tracker,
			Metrics:         metrics,
			CacheEnabled:    cfg.Cache.Enabled,
			CacheTTL:        cfg.Cache.TTL,
			CacheMaxSize:    cfg.Cache.MaxSize,
			Logger:          s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to build cloud router: %w", err)
		}
		s.cloudRouter = cr
		router = cr

	default: // static
		sr, err := llm.NewStaticRouter(llm.StaticRouterConfig{
			Providers: []llm.Provider{
				mock("cursor", "gpt-4o-mini"),
				mock("ollama", "llama3"),
				mock("huggingface", "mistral-7b"),
				mock("mistral", "mistral-large"),
				cloudProviders["anthropic"],
				cloudProviders["openai"],
				cloudProviders["openrouter"],
			},
			Tracker: s.tracker,
			Logger:  s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to build static router: %w", err)
		}
		s.staticRouter = sr
		router = sr
	}

	// 可选：给路由器外包一层熔断保护。链中只有路由器一个元素，
	// 后端切换由路由器内部的回退规则完成，这一层只负责熔断拒绝。
	// 此处不再传 Tracker，记账由路由器内部完成，避免重复计费。
	if cfg.Routing.FailoverEnabled {
		fo, err := llm.NewFailoverProvider(llm.FailoverConfig{
			Providers: []llm.Provider{router},
			CircuitConfig: circuitbreaker.Config{
				FailureThreshold: cfg.Breaker.FailureThreshold,
				ResetTimeout:     cfg.Breaker.ResetTimeout,
			},
			Logger: s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to build failover wrapper: %w", err)
		}
		s.failover = fo
		router = fo
	}

	s.router = router
	s.logger.Info("Router assembled",
		zap.String("strategy", cfg.Routing.Strategy),
		zap.Bool("failover", cfg.Routing.FailoverEnabled),
		zap.Bool("cache", cfg.Cache.Enabled))
	return nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 启动成本快照任务
	s.startSnapshotJob()

	// 2. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 3. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// startSnapshotJob 周期性记录成本快照，供趋势与预测使用
func (s *Server) startSnapshotJob() {
	interval := s.cfg.Analytics.SnapshotInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.snapshotCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.analytics.RecordSnapshot()
			}
		}
	}()

	s.logger.Info("Cost snapshot job started", zap.Duration("interval", interval))
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/version", s.handleVersion)

	// 补全端点
	mux.HandleFunc("/v1/complete", s.handleComplete)
	mux.HandleFunc("/v1/complete/stream", s.handleStream)

	// 成本端点
	mux.HandleFunc("/v1/cost/estimate", s.handleCostEstimate)
	mux.HandleFunc("/v1/cost/status", s.handleCostStatus)
	mux.HandleFunc("/v1/cost/trends", s.handleCostTrends)
	mux.HandleFunc("/v1/cost/prediction", s.handleCostPrediction)
	mux.HandleFunc("/v1/cost/alerts", s.handleCostAlerts)
	mux.HandleFunc("/v1/cost/history", s.handleCostHistory)

	// 路由器统计端点
	mux.HandleFunc("/v1/router/metrics", s.handleRouterMetrics)

	// 构建中间件链
	skipAuthPaths := []string{"/healthz", "/version"}
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		BearerAuth(s.cfg.Server.APIToken, skipAuthPaths),
	)

	s.httpManager = server.NewManager("gateway", s.cfg.Server.HTTPPort, handler, s.cfg.Server, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))

	s.metricsManager = server.NewManager("metrics", s.cfg.Server.MetricsPort, mux, s.cfg.Server, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 1. 停止快照任务
	if s.snapshotCancel != nil {
		s.snapshotCancel()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
