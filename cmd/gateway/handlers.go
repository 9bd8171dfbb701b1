// HTTP 处理函数实现。
//
// 补全、成本与路由器统计端点，统一 JSON 编解码与错误映射。
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentgate/llm"
	"github.com/BaSui01/agentgate/llm/costs"
)

// errorBody 错误响应体
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeJSON 序列化响应体并写出
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 将网关错误映射为 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	var gateErr *llm.Error
	if errors.As(err, &gateErr) {
		status := http.StatusBadGateway
		switch gateErr.Code {
		case llm.ErrBreakerOpen, llm.ErrAllProvidersDown:
			status = http.StatusServiceUnavailable
		case llm.ErrNoProvider:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorBody{
			Error:     gateErr.Message,
			Code:      string(gateErr.Code),
			Provider:  gateErr.Provider,
			Retryable: gateErr.Retryable,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

// decodeRequest 解析补全请求体
func decodeRequest(w http.ResponseWriter, r *http.Request) (llm.CompletionRequest, bool) {
	var req llm.CompletionRequest
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return req, false
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "messages must not be empty"})
		return req, false
	}
	return req, true
}

// allowAgent 执行每 Agent 限流检查
func (s *Server) allowAgent(w http.ResponseWriter, agentID string) bool {
	if s.registry.Allow(agentID) {
		return true
	}
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error: "rate limit exceeded for agent " + agentID,
	})
	return false
}

// =============================================================================
// 补全端点
// =============================================================================

// handleComplete 同步补全
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if !s.allowAgent(w, req.AgentID) {
		return
	}

	resp, err := s.router.Complete(r.Context(), req)
	if err != nil {
		s.logger.Warn("completion failed",
			zap.String("agent_id", req.AgentID),
			zap.String("model", req.Model),
			zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStream 流式补全，逐片段 flush
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if !s.allowAgent(w, req.AgentID) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := s.router.Stream(r.Context(), req, func(chunk llm.CompletionChunk) error {
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// 头已发出，只能以终止片段传递错误
		s.logger.Warn("stream failed",
			zap.String("agent_id", req.AgentID),
			zap.Error(err))
	}
}

// =============================================================================
// 成本端点
// =============================================================================

func (s *Server) handleCostStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status())
}

func (s *Server) handleCostTrends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analytics.Trends())
}

func (s *Server) handleCostPrediction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analytics.PredictMonthlyCost())
}

func (s *Server) handleCostAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.analytics.Alerts()
	if alerts == nil {
		alerts = []costs.CostAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// estimateRequest 成本预检请求体
type estimateRequest struct {
	Model                string        `json:"model"`
	Messages             []llm.Message `json:"messages"`
	ExpectedOutputTokens int           `json:"expected_output_tokens"`
}

// estimateResponse 成本预检响应体
type estimateResponse struct {
	Model         string  `json:"model"`
	PromptTokens  int     `json:"prompt_tokens"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
	Allowed       bool    `json:"allowed"`
	Reason        string  `json:"reason,omitempty"`
}

// handleCostEstimate 请求前预算预检：估算 token 与成本，并对照预算判定。
// 判定只是建议，路由不会据此拦截请求。
func (s *Server) handleCostEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	var input strings.Builder
	for _, msg := range req.Messages {
		input.WriteString(msg.Content)
		input.WriteString("\n")
	}

	promptTokens := s.estimator.EstimateTokens(req.Model, input.String())
	cost := s.estimator.EstimateCost(req.Model, input.String(), req.ExpectedOutputTokens)
	allowed, reason := s.tracker.CheckBudget(cost)

	writeJSON(w, http.StatusOK, estimateResponse{
		Model:         req.Model,
		PromptTokens:  promptTokens,
		EstimatedCost: cost,
		Allowed:       allowed,
		Reason:        reason,
	})
}

// handleCostHistory 返回快照历史，since 支持 RFC3339，默认最近 24 小时
func (s *Server) handleCostHistory(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid since parameter, expected RFC3339"})
			return
		}
		since = parsed
	}
	writeJSON(w, http.StatusOK, s.analytics.HistoricalData(since))
}

// =============================================================================
// 路由器统计端点
// =============================================================================

// handleRouterMetrics 返回当前路由器的统计快照
func (s *Server) handleRouterMetrics(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"strategy": s.cfg.Routing.Strategy,
	}
	switch {
	case s.staticRouter != nil:
		body["router"] = s.staticRouter.GetMetrics()
	case s.tierRouter != nil:
		body["router"] = s.tierRouter.GetMetrics()
	case s.cloudRouter != nil:
		body["router"] = s.cloudRouter.GetMetrics()
	}
	if s.failover != nil {
		body["failover"] = s.failover.GetMetrics()
	}
	writeJSON(w, http.StatusOK, body)
}

// =============================================================================
// 健康与版本
// =============================================================================

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}
