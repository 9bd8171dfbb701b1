package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// ModelTier defines which LLM tier an agent should use.
type ModelTier string

const (
	TierLocal  ModelTier = "local"  // local backend - fast, cheap
	TierCloud  ModelTier = "cloud"  // cloud backends - powerful, expensive
	TierHybrid ModelTier = "hybrid" // route by complexity
)

// AgentConfig holds per-agent configuration. Routers treat it as
// read-only input; overrides are applied to requests, never written back.
type AgentConfig struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ModelTier      ModelTier `json:"model_tier"`
	DefaultModel   string    `json:"default_model"`
	RateLimitRPS   float64   `json:"rate_limit_rps"`
	RateLimitBurst int       `json:"rate_limit_burst"`
	MaxTokens      int       `json:"max_tokens"`
	Temperature    float64   `json:"temperature"`
	// Hybrid tier settings
	ComplexityThreshold float64 `json:"complexity_threshold"` // at or above this, route cloud
	LatencyBudgetMs     int     `json:"latency_budget_ms"`
}

// DefaultAgentConfig returns sensible defaults for unknown agents.
func DefaultAgentConfig(agentID string) AgentConfig {
	return AgentConfig{
		ID:                  agentID,
		Name:                agentID,
		ModelTier:           TierHybrid,
		DefaultModel:        "",
		RateLimitRPS:        5.0,
		RateLimitBurst:      10,
		MaxTokens:           2000,
		Temperature:         0.7,
		ComplexityThreshold: 0.5,
		LatencyBudgetMs:     5000,
	}
}

// Registry manages agent configurations and per-agent rate limiters.
type Registry struct {
	mu       sync.RWMutex
	configs  map[string]AgentConfig
	limiters map[string]*rate.Limiter
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		configs:  make(map[string]AgentConfig),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Register adds or updates an agent configuration.
func (r *Registry) Register(cfg AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.ID] = cfg
	if cfg.RateLimitRPS > 0 {
		r.limiters[cfg.ID] = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
}

// Get retrieves agent configuration, returning defaults for unknown agents.
func (r *Registry) Get(agentID string) AgentConfig {
	r.mu.RLock()
	cfg, ok := r.configs[agentID]
	r.mu.RUnlock()

	if !ok {
		return DefaultAgentConfig(agentID)
	}
	return cfg
}

// GetLimiter returns the rate limiter for an agent, creating one if needed.
func (r *Registry) GetLimiter(agentID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters[agentID]; ok {
		return lim
	}

	cfg := DefaultAgentConfig(agentID)
	lim := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	r.limiters[agentID] = lim
	return lim
}

// Allow reports whether a request from an agent is within its rate limit.
func (r *Registry) Allow(agentID string) bool {
	return r.GetLimiter(agentID).Allow()
}

// List returns all registered agent IDs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	return ids
}

// LoadFromDir loads agent configurations from JSON files in a directory.
// A file's base name is used as the agent ID when the config omits one.
func (r *Registry) LoadFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read agent config dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var cfg AgentConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		if cfg.ID == "" {
			cfg.ID = strings.TrimSuffix(entry.Name(), ".json")
		}

		r.Register(cfg)
	}

	return nil
}
