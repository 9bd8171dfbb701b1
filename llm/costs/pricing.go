package costs

import "sync"

// ModelPrice 模型价格（USD / 1M tokens）
type ModelPrice struct {
	Model       string
	PriceInput  float64
	PriceOutput float64
}

// 未知模型的兜底价格
var defaultPrice = ModelPrice{PriceInput: 1.00, PriceOutput: 3.00}

// Pricing 价格表，可从配置覆盖。
type Pricing struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewPricing 创建价格表并加载默认价格。
func NewPricing() *Pricing {
	p := &Pricing{
		prices: make(map[string]ModelPrice),
	}
	p.loadDefaultPrices()
	return p
}

// loadDefaultPrices 加载默认价格（2026 年初的近似值，需定期更新）
func (p *Pricing) loadDefaultPrices() {
	defaults := []ModelPrice{
		// OpenAI
		{Model: "gpt-4o", PriceInput: 2.50, PriceOutput: 10.00},
		{Model: "gpt-4o-mini", PriceInput: 0.15, PriceOutput: 0.60},
		{Model: "gpt-4-turbo", PriceInput: 10.00, PriceOutput: 30.00},
		{Model: "gpt-4", PriceInput: 30.00, PriceOutput: 60.00},
		{Model: "gpt-3.5-turbo", PriceInput: 0.50, PriceOutput: 1.50},
		{Model: "o1", PriceInput: 15.00, PriceOutput: 60.00},
		{Model: "o1-mini", PriceInput: 3.00, PriceOutput: 12.00},
		// Anthropic
		{Model: "claude-sonnet-4-20250514", PriceInput: 3.00, PriceOutput: 15.00},
		{Model: "claude-3-5-sonnet-20241022", PriceInput: 3.00, PriceOutput: 15.00},
		{Model: "claude-3-opus-20240229", PriceInput: 15.00, PriceOutput: 75.00},
		{Model: "claude-3-haiku-20240307", PriceInput: 0.25, PriceOutput: 1.25},
		// OpenRouter 命名空间前缀
		{Model: "openai/gpt-4o", PriceInput: 2.50, PriceOutput: 10.00},
		{Model: "openai/gpt-4o-mini", PriceInput: 0.15, PriceOutput: 0.60},
		{Model: "anthropic/claude-sonnet-4-20250514", PriceInput: 3.00, PriceOutput: 15.00},
		{Model: "anthropic/claude-3-5-sonnet", PriceInput: 3.00, PriceOutput: 15.00},
		{Model: "meta-llama/llama-3-70b-instruct", PriceInput: 0.59, PriceOutput: 0.79},
		{Model: "google/gemini-pro-1.5", PriceInput: 1.25, PriceOutput: 5.00},
	}

	for _, mp := range defaults {
		p.prices[mp.Model] = mp
	}
}

// SetPrice 设置单个模型价格。
func (p *Pricing) SetPrice(model string, priceInput, priceOutput float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[model] = ModelPrice{Model: model, PriceInput: priceInput, PriceOutput: priceOutput}
}

// UpdatePrices 批量更新价格（从配置）。
func (p *Pricing) UpdatePrices(prices []ModelPrice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, mp := range prices {
		p.prices[mp.Model] = mp
	}
}

// Price 查询模型价格，未知模型返回兜底价格。
func (p *Pricing) Price(model string) ModelPrice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if mp, ok := p.prices[model]; ok {
		return mp
	}
	return defaultPrice
}

// Calculate 计算一次请求的成本。
func (p *Pricing) Calculate(model string, promptTokens, completionTokens int) float64 {
	mp := p.Price(model)
	inputCost := float64(promptTokens) / 1_000_000 * mp.PriceInput
	outputCost := float64(completionTokens) / 1_000_000 * mp.PriceOutput
	return inputCost + outputCost
}

// CalculateCost 使用默认价格表计算成本。
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	return sharedPricing.Calculate(model, promptTokens, completionTokens)
}

var sharedPricing = NewPricing()
