package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentgate/config"
)

// =============================================================================
// 🌐 网关监听器管理器
// =============================================================================

// Manager 管理网关单个监听端口的生命周期。
// 业务端口与指标端口各持有一个 Manager，共用同一套
// 启动与优雅关闭逻辑，超时参数取自网关的服务器配置。
type Manager struct {
	name            string
	server          *http.Server
	listener        net.Listener
	errCh           chan error
	shutdownTimeout time.Duration
	logger          *zap.Logger
	mu              sync.RWMutex
	closed          bool
}

// NewManager 基于网关配置创建监听器管理器。
// name 标识端口用途（gateway/metrics），用于区分日志来源；
// port 为 0 时由系统分配端口，实际地址通过 Addr 获取。
func NewManager(name string, port int, handler http.Handler, cfg config.ServerConfig, logger *zap.Logger) *Manager {
	idleTimeout := 2 * cfg.ReadTimeout
	if idleTimeout <= 0 {
		idleTimeout = 120 * time.Second
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    idleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return &Manager{
		name:            name,
		server:          srv,
		errCh:           make(chan error, 1),
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger.With(zap.String("server", name)),
	}
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Start 启动监听（非阻塞）
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%s server is closed", m.name)
	}

	if m.listener != nil {
		return fmt.Errorf("%s server already started", m.name)
	}

	listener, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.server.Addr, err)
	}

	m.listener = listener
	m.logger.Info("listener started", zap.String("addr", listener.Addr().String()))

	go m.serve(listener)

	return nil
}

func (m *Manager) serve(listener net.Listener) {
	if err := m.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		m.logger.Error("server failed", zap.Error(err))
		select {
		case m.errCh <- err:
		default:
		}
	}
}

// Shutdown 优雅关闭监听器
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.logger.Info("shutting down listener")

	timeout := m.shutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := m.server.Shutdown(shutdownCtx); err != nil {
		m.logger.Error("listener shutdown failed", zap.Error(err))
		return err
	}

	m.listener = nil

	m.logger.Info("listener stopped")
	return nil
}

// WaitForShutdown 阻塞等待关闭信号或监听器异常退出
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-m.errCh:
		if err != nil {
			m.logger.Error("server exited unexpectedly", zap.Error(err))
		}
	}

	ctx := context.Background()
	if err := m.Shutdown(ctx); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
}

// =============================================================================
// 🔧 辅助方法
// =============================================================================

// Addr 返回实际监听地址，未启动时为空字符串。
// 配置端口为 0 时这里返回系统分配的端口。
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// IsRunning 检查监听器是否运行中
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}
