package llm

import (
	"strings"
)

// reasoningKeywords 系统提示中的复杂推理信号。
var reasoningKeywords = []string{
	"analyze", "synthesize", "evaluate", "compare", "reasoning", "step by step",
}

// codeKeywords 系统提示中的代码生成信号。
var codeKeywords = []string{
	"code", "implement", "function", "algorithm",
}

// AssessComplexity 估算请求复杂度（0.0 = 简单，1.0 = 复杂）。
// 启发式评分：输入规模、对话轮数、系统提示信号、期望输出长度，
// 各因子相加后收敛到 [0, 1]。只检查首个系统消息，大小写不敏感。
func AssessComplexity(req CompletionRequest) float64 {
	var score float64

	// 因子 1：输入规模
	totalChars := 0
	for _, msg := range req.Messages {
		totalChars += len(msg.Content)
	}
	if totalChars > 8000 {
		score += 0.3
	} else if totalChars > 4000 {
		score += 0.2
	} else if totalChars > 2000 {
		score += 0.1
	}

	// 因子 2：对话轮数
	if len(req.Messages) > 10 {
		score += 0.2
	} else if len(req.Messages) > 5 {
		score += 0.1
	}

	// 因子 3：系统提示信号
	for _, msg := range req.Messages {
		if msg.Role != RoleSystem {
			continue
		}
		content := strings.ToLower(msg.Content)
		for _, kw := range reasoningKeywords {
			if strings.Contains(content, kw) {
				score += 0.2
				break
			}
		}
		for _, kw := range codeKeywords {
			if strings.Contains(content, kw) {
				score += 0.15
				break
			}
		}
		break
	}

	// 因子 4：期望输出长度
	if req.MaxTokens > 4000 {
		score += 0.15
	} else if req.MaxTokens > 2000 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}

	return score
}

// buildCacheKey 生成缓存键：agent + model + 各消息的角色与内容前缀。
// 内容只取前 100 字符，键完全一致才命中。
func buildCacheKey(req CompletionRequest) string {
	var sb strings.Builder
	sb.WriteString(req.AgentID)
	sb.WriteString("|")
	sb.WriteString(req.Model)
	sb.WriteString("|")
	for _, msg := range req.Messages {
		sb.WriteString(msg.Role)
		sb.WriteString(":")
		content := msg.Content
		if len(content) > 100 {
			content = content[:100]
		}
		sb.WriteString(content)
		sb.WriteString("|")
	}
	return sb.String()
}
