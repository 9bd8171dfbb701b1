package costs

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator 请求前的 token 估算，用于预算预检。
// 优先使用模型对应的 tiktoken 编码；编码不可用时退化为 len/4 粗估。
type Estimator struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewEstimator 创建 token 估算器。
func NewEstimator() *Estimator {
	return &Estimator{
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// EstimateTokens 估算文本的 token 数。
func (e *Estimator) EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}

	enc := e.encoder(model)
	if enc == nil {
		// 经验值：英文平均 4 字符/token
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateCost 按输入文本与预期输出 token 数估算请求成本（美元）。
func (e *Estimator) EstimateCost(model, input string, expectedOutputTokens int) float64 {
	promptTokens := e.EstimateTokens(model, input)
	return CalculateCost(model, promptTokens, expectedOutputTokens)
}

func (e *Estimator) encoder(model string) *tiktoken.Tiktoken {
	key := encodingFor(model)

	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.encoders[key]; ok {
		return enc
	}
	enc, err := tiktoken.GetEncoding(key)
	if err != nil {
		return nil
	}
	e.encoders[key] = enc
	return enc
}

// encodingFor 选择模型对应的 tiktoken 编码名。
// 非 OpenAI 系模型没有公开的分词器，统一用 cl100k_base 近似。
func encodingFor(model string) string {
	m := strings.ToLower(model)
	if strings.Contains(m, "gpt-4o") || strings.HasPrefix(m, "o1") {
		return "o200k_base"
	}
	return "cl100k_base"
}
