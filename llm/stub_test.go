package llm

import (
	"context"
	"sync/atomic"
)

// stubProvider 可编程的测试后端：固定返回 err 或成功响应。
type stubProvider struct {
	name  string
	err   error
	model string
	calls int64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return CompletionResponse{}, s.err
	}
	model := s.model
	if model == "" {
		model = req.Model
	}
	return CompletionResponse{
		Content:  "ok",
		Model:    model,
		Provider: s.name,
		Usage:    Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (s *stubProvider) Stream(_ context.Context, req CompletionRequest, emit func(CompletionChunk) error) error {
	atomic.AddInt64(&s.calls, 1)
	if s.err != nil {
		return s.err
	}
	if err := emit(CompletionChunk{Content: "ok", Provider: s.name}); err != nil {
		return err
	}
	return emit(CompletionChunk{Done: true, Provider: s.name})
}

func (s *stubProvider) callCount() int64 {
	return atomic.LoadInt64(&s.calls)
}
