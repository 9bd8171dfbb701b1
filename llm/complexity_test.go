package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestAssessComplexityBuckets(t *testing.T) {
	tests := []struct {
		name string
		req  CompletionRequest
		want float64
	}{
		{
			name: "empty request",
			req:  CompletionRequest{},
			want: 0,
		},
		{
			name: "chars over 2000",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleUser, Content: strings.Repeat("a", 2001)},
			}},
			want: 0.1,
		},
		{
			name: "chars over 4000",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleUser, Content: strings.Repeat("a", 4001)},
			}},
			want: 0.2,
		},
		{
			name: "chars over 8000",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleUser, Content: strings.Repeat("a", 8001)},
			}},
			want: 0.3,
		},
		{
			name: "six short messages",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"},
				{Role: RoleUser, Content: "c"}, {Role: RoleAssistant, Content: "d"},
				{Role: RoleUser, Content: "e"}, {Role: RoleAssistant, Content: "f"},
			}},
			want: 0.1,
		},
		{
			name: "reasoning keyword in system prompt",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleSystem, Content: "Analyze the following data"},
			}},
			want: 0.2,
		},
		{
			name: "code keyword in system prompt",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleSystem, Content: "Implement a parser"},
			}},
			want: 0.15,
		},
		{
			name: "reasoning and code keywords",
			req: CompletionRequest{Messages: []Message{
				{Role: RoleSystem, Content: "analyze then implement code step by step"},
			}},
			want: 0.35,
		},
		{
			name: "max tokens over 2000",
			req:  CompletionRequest{MaxTokens: 2001},
			want: 0.1,
		},
		{
			name: "max tokens over 4000",
			req:  CompletionRequest{MaxTokens: 4001},
			want: 0.15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AssessComplexity(tt.req), 1e-9)
		})
	}
}

// 超过 10 条消息、总字符超 8000、系统提示含 analyze 的请求评分 ≥ 0.7。
func TestAssessComplexityHighScenario(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "Please analyze and implement the algorithm"},
	}
	for i := 0; i < 11; i++ {
		messages = append(messages, Message{Role: RoleUser, Content: strings.Repeat("x", 800)})
	}

	req := CompletionRequest{Messages: messages, MaxTokens: 5000}
	score := AssessComplexity(req)
	assert.GreaterOrEqual(t, score, 0.7)
	assert.LessOrEqual(t, score, 1.0)
}

func TestAssessComplexityOnlyFirstSystemMessage(t *testing.T) {
	req := CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "hello"},
		{Role: RoleSystem, Content: "analyze everything"},
	}}
	// 只检查首个系统消息，第二个不计分
	assert.InDelta(t, 0.0, AssessComplexity(req), 1e-9)
}

func TestAssessComplexityClamped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "messages")
		chars := rapid.IntRange(0, 500).Draw(t, "chars")
		maxTokens := rapid.IntRange(0, 10000).Draw(t, "max_tokens")
		system := rapid.SampledFrom([]string{
			"", "analyze and implement code step by step",
			"synthesize evaluate compare reasoning",
		}).Draw(t, "system")

		var messages []Message
		if system != "" {
			messages = append(messages, Message{Role: RoleSystem, Content: system})
		}
		for i := 0; i < n; i++ {
			messages = append(messages, Message{Role: RoleUser, Content: strings.Repeat("y", chars)})
		}

		score := AssessComplexity(CompletionRequest{Messages: messages, MaxTokens: maxTokens})
		if score < 0 || score > 1 {
			t.Fatalf("score %f out of [0,1]", score)
		}
	})
}

func TestBuildCacheKey(t *testing.T) {
	req1 := CompletionRequest{
		AgentID: "agent-1",
		Model:   "gpt-4o",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
		},
	}
	req2 := req1
	req2.Messages = []Message{{Role: RoleUser, Content: "hello!"}}

	assert.NotEqual(t, buildCacheKey(req1), buildCacheKey(req2))

	req3 := req1
	req3.AgentID = "agent-2"
	assert.NotEqual(t, buildCacheKey(req1), buildCacheKey(req3))

	req4 := req1
	req4.Model = "gpt-4o-mini"
	assert.NotEqual(t, buildCacheKey(req1), buildCacheKey(req4))

	assert.Equal(t, buildCacheKey(req1), buildCacheKey(req1))
}

func TestBuildCacheKeyTruncatesLongContent(t *testing.T) {
	long1 := strings.Repeat("a", 100) + "tail-one"
	long2 := strings.Repeat("a", 100) + "tail-two"

	k1 := buildCacheKey(CompletionRequest{Messages: []Message{{Role: RoleUser, Content: long1}}})
	k2 := buildCacheKey(CompletionRequest{Messages: []Message{{Role: RoleUser, Content: long2}}})

	// 前 100 字符相同的超长内容共享缓存键
	assert.Equal(t, k1, k2)
}
