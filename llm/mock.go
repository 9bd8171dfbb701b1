package llm

import (
	"context"
	"strings"
)

// MockProvider 回声式 Provider，用于本地联调与测试。
type MockProvider struct {
	ProviderName string
	DefaultModel string
}

func (m MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	joined := make([]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		joined = append(joined, msg.Content)
	}
	combined := strings.Join(joined, "\n")
	respText := "[mock] " + combined

	model := req.Model
	if model == "" {
		model = m.DefaultModel
	}

	// 粗略的 len/4 token 估算
	usage := Usage{
		PromptTokens:     len(combined) / 4,
		CompletionTokens: len(respText) / 4,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return CompletionResponse{
		Content:  respText,
		Model:    model,
		Provider: m.Name(),
		Usage:    usage,
	}, nil
}

func (m MockProvider) Stream(ctx context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := emit(CompletionChunk{
		Content:  resp.Content,
		Model:    resp.Model,
		Provider: resp.Provider,
	}); err != nil {
		return err
	}
	return emit(CompletionChunk{Done: true, Model: resp.Model, Provider: resp.Provider})
}
