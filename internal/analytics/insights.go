package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/llm"
)

// ErrNoRecords is returned when insights are requested for an empty batch.
var ErrNoRecords = errors.New("no structured data available")

// Insights is a model-written narrative over a batch.
type Insights struct {
	Analysis     string `json:"analysis"`
	InvoiceCount int    `json:"invoice_count"`
}

// Analyst asks the model for a financial overview of a record batch.
type Analyst struct {
	provider    llm.Provider
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewAnalyst creates an Analyst.
func NewAnalyst(provider llm.Provider, model string, maxTokens int, temperature float64, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{provider: provider, model: model, maxTokens: maxTokens, temperature: temperature, logger: logger}
}

// Analyze returns the model's analysis of records.
func (a *Analyst) Analyze(ctx context.Context, records []invoice.Record) (*Insights, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.model,
		Messages: []llm.Message{
			llm.System(analystSystemPrompt),
			llm.User(fmt.Sprintf(analystPrompt, data)),
		},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", invoice.ErrCompletionService, err)
	}

	a.logger.Debug("insights generated", "records", len(records), "output_tokens", resp.OutputTokens)
	return &Insights{Analysis: strings.TrimSpace(resp.Content), InvoiceCount: len(records)}, nil
}

const analystSystemPrompt = "You are a financial analyst."

const analystPrompt = `You are a financial analyst. Given this list of invoices (JSON), please provide:
1. Total number of invoices
2. Sum of all invoice totals
3. Average invoice amount
4. Top vendors by frequency
5. Date range covered
6. Any detected anomalies or patterns

Data:
%s

Analysis:`
