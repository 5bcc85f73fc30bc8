package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/llm"
)

// Options controls the completion request sent per document.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Schema is embedded in the prompt. Defaults to invoice.Schema.
	Schema string
	// Concurrency bounds ExtractBatch. Values below 1 mean sequential.
	Concurrency int
}

// Extractor maps raw invoice text to structured records with one model call per document.
type Extractor struct {
	provider llm.Provider
	opts     Options
	logger   *slog.Logger
}

// New creates an Extractor.
func New(provider llm.Provider, opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Schema == "" {
		opts.Schema = invoice.Schema
	}
	return &Extractor{provider: provider, opts: opts, logger: logger}
}

// Extract returns an invoice record, or an error record when the model call
// fails or its output does not parse. It never returns a Go error.
func (e *Extractor) Extract(ctx context.Context, rawText, fileName string) invoice.Record {
	start := time.Now()
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model:       e.opts.Model,
		Messages:    buildMessages(e.opts.Schema, rawText),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", invoice.ErrCompletionService, err)
		e.logger.Warn("structured extraction failed", "file", fileName, "error", err)
		return invoice.NewErrorRecord(err.Error(), nil, fileName)
	}

	record := ParseResponse(resp.Content, fileName)
	if record.IsError() {
		e.logger.Warn("model output did not parse", "file", fileName, "error", record.ErrorMessage())
		return record
	}

	if issues, err := invoice.CheckConformance(record); err != nil {
		e.logger.Debug("schema check unavailable", "error", err)
	} else if len(issues) > 0 {
		e.logger.Debug("record deviates from schema", "file", fileName, "issues", issues)
	}
	e.logger.Debug("record extracted", "file", fileName, "fields", record.Len(),
		"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens, "duration", time.Since(start))
	return record
}

// ExtractBatch extracts a record for every document that has raw text, in
// input order. Documents whose text extraction failed are skipped.
func (e *Extractor) ExtractBatch(ctx context.Context, docs []invoice.ProcessedDocument, onProgress invoice.ProgressFunc) []invoice.Record {
	var todo []invoice.ProcessedDocument
	for _, d := range docs {
		if d.OK() {
			todo = append(todo, d)
		}
	}

	records := make([]invoice.Record, len(todo))

	var g errgroup.Group
	g.SetLimit(max(e.opts.Concurrency, 1))

	var mu sync.Mutex
	done := 0
	for i, d := range todo {
		g.Go(func() error {
			records[i] = e.Extract(ctx, d.Text(), d.FileName)
			if onProgress != nil {
				mu.Lock()
				done++
				onProgress(done, len(todo), d.FileName)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return records
}
