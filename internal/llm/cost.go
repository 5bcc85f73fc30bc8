package llm

import (
	"context"
	"sync/atomic"
)

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	"gpt-4-turbo-preview": {InputPerMillion: 10.00, OutputPerMillion: 30.00},
	"gpt-4-turbo":         {InputPerMillion: 10.00, OutputPerMillion: 30.00},
	"gpt-4o":              {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":         {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"openai/gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},

	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Returns 0 if the model is not found in the price table.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// EstimateTokens provides a rough token count estimation for the given text.
// Uses the approximation of 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// Usage is a snapshot of accumulated token counts.
type Usage struct {
	Calls        int64   `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"estimated_cost_usd"`
}

// UsageTracker wraps a Provider and counts calls and tokens across requests.
type UsageTracker struct {
	provider Provider
	model    string
	calls    atomic.Int64
	input    atomic.Int64
	output   atomic.Int64
}

// NewUsageTracker wraps provider; model is used to price the usage.
func NewUsageTracker(provider Provider, model string) *UsageTracker {
	return &UsageTracker{provider: provider, model: model}
}

func (u *UsageTracker) Name() string {
	return u.provider.Name()
}

func (u *UsageTracker) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	u.calls.Add(1)
	resp, err := u.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	u.input.Add(int64(resp.InputTokens))
	u.output.Add(int64(resp.OutputTokens))
	return resp, nil
}

// Usage returns the totals so far.
func (u *UsageTracker) Usage() Usage {
	in, out := u.input.Load(), u.output.Load()
	return Usage{
		Calls:        u.calls.Load(),
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      EstimateCost(u.model, int(in), int(out)),
	}
}
