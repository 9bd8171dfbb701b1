// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "static", cfg.Routing.Strategy)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  metrics_port: 9999
  read_timeout: 60s

routing:
  strategy: "tier"
  default_provider: "anthropic"
  failover_enabled: true
  complexity_threshold: 0.7

budget:
  daily_usd: 5.0
  monthly_usd: 100.0

cache:
  enabled: true
  max_size: 256
  ttl: 10m

breaker:
  failure_threshold: 5
  reset_timeout: 30s

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 9999, cfg.Server.MetricsPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "tier", cfg.Routing.Strategy)
	assert.Equal(t, "anthropic", cfg.Routing.DefaultProvider)
	assert.True(t, cfg.Routing.FailoverEnabled)
	assert.InDelta(t, 0.7, cfg.Routing.ComplexityThreshold, 0.001)

	assert.InDelta(t, 5.0, cfg.Budget.DailyUSD, 0.001)
	assert.InDelta(t, 100.0, cfg.Budget.MonthlyUSD, 0.001)

	assert.Equal(t, 256, cfg.Cache.MaxSize)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.ResetTimeout)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	// 设置环境变量
	envVars := map[string]string{
		"AGENTGATE_SERVER_HTTP_PORT":         "7777",
		"AGENTGATE_ROUTING_STRATEGY":         "cloud",
		"AGENTGATE_BUDGET_DAILY_USD":         "2.5",
		"AGENTGATE_CACHE_TTL":                "90s",
		"AGENTGATE_BREAKER_RESET_TIMEOUT":    "45s",
		"AGENTGATE_LOG_LEVEL":                "warn",
		"AGENTGATE_ROUTING_FAILOVER_ENABLED": "true",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
	}
	// 清理环境变量
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	// 加载配置
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	// 验证环境变量覆盖了默认值
	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "cloud", cfg.Routing.Strategy)
	assert.InDelta(t, 2.5, cfg.Budget.DailyUSD, 0.001)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 45*time.Second, cfg.Breaker.ResetTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Routing.FailoverEnabled)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
routing:
  strategy: "tier"
  default_provider: "openai"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 设置环境变量（应该覆盖 YAML）
	os.Setenv("AGENTGATE_SERVER_HTTP_PORT", "9999")
	os.Setenv("AGENTGATE_ROUTING_STRATEGY", "static")
	defer func() {
		os.Unsetenv("AGENTGATE_SERVER_HTTP_PORT")
		os.Unsetenv("AGENTGATE_ROUTING_STRATEGY")
	}()

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "static", cfg.Routing.Strategy)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "openai", cfg.Routing.DefaultProvider)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	// 设置自定义前缀的环境变量
	os.Setenv("MYGATE_SERVER_HTTP_PORT", "6666")
	os.Setenv("MYGATE_ROUTING_STRATEGY", "cloud")
	defer func() {
		os.Unsetenv("MYGATE_SERVER_HTTP_PORT")
		os.Unsetenv("MYGATE_ROUTING_STRATEGY")
	}()

	// 使用自定义前缀加载
	cfg, err := NewLoader().
		WithEnvPrefix("MYGATE").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "cloud", cfg.Routing.Strategy)
}

func TestLoader_WithValidator(t *testing.T) {
	// 添加验证器
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	// 设置无效端口
	os.Setenv("AGENTGATE_SERVER_HTTP_PORT", "80")
	defer os.Unsetenv("AGENTGATE_SERVER_HTTP_PORT")

	// 加载应该失败
	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// 应该返回默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	// 创建无效的 YAML 文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	// 加载应该失败
	_, err = NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid HTTP port (negative)",
			modify: func(c *Config) {
				c.Server.HTTPPort = -1
			},
			wantErr: true,
		},
		{
			name: "invalid HTTP port (too large)",
			modify: func(c *Config) {
				c.Server.HTTPPort = 70000
			},
			wantErr: true,
		},
		{
			name: "unknown routing strategy",
			modify: func(c *Config) {
				c.Routing.Strategy = "random"
			},
			wantErr: true,
		},
		{
			name: "complexity threshold out of range",
			modify: func(c *Config) {
				c.Routing.ComplexityThreshold = 1.5
			},
			wantErr: true,
		},
		{
			name: "negative daily budget",
			modify: func(c *Config) {
				c.Budget.DailyUSD = -1
			},
			wantErr: true,
		},
		{
			name: "cache enabled with zero max size",
			modify: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.MaxSize = 0
			},
			wantErr: true,
		},
		{
			name: "zero breaker threshold",
			modify: func(c *Config) {
				c.Breaker.FailureThreshold = 0
			},
			wantErr: true,
		},
		{
			name: "zero breaker reset timeout",
			modify: func(c *Config) {
				c.Breaker.ResetTimeout = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	// 创建有效配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8080
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 不应该 panic
	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	// 创建无效配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0644)
	require.NoError(t, err)

	// 应该 panic
	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	os.Setenv("AGENTGATE_ROUTING_DEFAULT_PROVIDER", "mistral")
	defer os.Unsetenv("AGENTGATE_ROUTING_DEFAULT_PROVIDER")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.Routing.DefaultProvider)
}
