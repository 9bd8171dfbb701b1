package llm

import "context"

// Role 消息角色
type Role = string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 单条对话消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest 一次补全请求。
// 路由器在调用 Provider 前会修改自己的本地副本（填充 Agent 默认值），
// 调用方持有的原始请求不会被改动。
type CompletionRequest struct {
	AgentID     string    `json:"agent_id"`
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	RequestID   string    `json:"request_id,omitempty"` // 为空时由路由器生成
}

// Usage Token 用量统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse Provider 返回的完整响应
type CompletionResponse struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Usage    Usage  `json:"usage"`
}

// CompletionChunk 流式响应的增量片段。
// 正常结束与内部错误路径都必须发送且仅发送一个 Done=true 的终止片段。
type CompletionChunk struct {
	Content  string `json:"content"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Provider 定义了统一的 LLM 后端接口，便于路由与熔断。
// Complete 不内置超时，依赖底层网络客户端自身的 deadline；
// Stream 在片段之间检查 ctx，调用方可中途取消。
type Provider interface {
	// Name 返回 Provider 的唯一标识
	Name() string

	// Complete 发起同步补全请求，返回完整响应
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream 发起流式补全请求，通过 emit 逐片段回调
	Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error
}
