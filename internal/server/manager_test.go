package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentgate/config"
)

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
}

func healthzMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// --- 生命周期 ---

func TestManager_ServesGatewayHandler(t *testing.T) {
	m := NewManager("gateway", 0, healthzMux(), testServerConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_DualPorts(t *testing.T) {
	// 业务端口与指标端口各自独立监听
	gateway := NewManager("gateway", 0, healthzMux(), testServerConfig(), zap.NewNop())
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# HELP llm_requests_total\n"))
	})
	metrics := NewManager("metrics", 0, metricsMux, testServerConfig(), zap.NewNop())

	require.NoError(t, gateway.Start())
	t.Cleanup(func() { gateway.Shutdown(context.Background()) })
	require.NoError(t, metrics.Start())
	t.Cleanup(func() { metrics.Shutdown(context.Background()) })

	assert.NotEqual(t, gateway.Addr(), metrics.Addr())

	resp, err := http.Get("http://" + gateway.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + metrics.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "llm_requests_total")
}

func TestManager_DoubleStart(t *testing.T) {
	m := NewManager("gateway", 0, healthzMux(), testServerConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	err := m.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	m := NewManager("gateway", 0, healthzMux(), testServerConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartAfterShutdown(t *testing.T) {
	m := NewManager("gateway", 0, healthzMux(), testServerConfig(), zap.NewNop())

	require.NoError(t, m.Start())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

// --- 辅助方法 ---

func TestManager_AddrBeforeStart(t *testing.T) {
	m := NewManager("gateway", 0, healthzMux(), testServerConfig(), zap.NewNop())
	assert.Empty(t, m.Addr())
}

func TestManager_IsRunning(t *testing.T) {
	m := NewManager("metrics", 0, healthzMux(), testServerConfig(), zap.NewNop())

	assert.True(t, m.IsRunning(), "new manager should report running (not closed)")

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())
}

func TestManager_ZeroTimeoutsGetDefaults(t *testing.T) {
	// 空配置也能启动服务：空闲与关闭超时回退到内置默认值
	m := NewManager("gateway", 0, healthzMux(), config.ServerConfig{}, zap.NewNop())

	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + m.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
