// Package qa answers free-form questions about a processed batch by
// retrieving relevant invoice text and asking the model to synthesize a reply.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/invoicer/internal/llm"
	"github.com/ziadkadry99/invoicer/internal/vectordb"
)

// NotProcessedAnswer is returned while no index has been built.
const NotProcessedAnswer = "No invoices processed yet. Please upload & process first."

// DefaultTopK is the number of chunks given to the model per question.
const DefaultTopK = 3

// Retriever finds the chunks most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]vectordb.Hit, error)
}

// Answer is the reply to one question.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Options controls the completion request.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopK        int
}

// Answerer answers questions from retrieved context. Every question is
// answered on its own; earlier turns are never sent to the model.
type Answerer struct {
	retriever Retriever
	provider  llm.Provider
	opts      Options
	logger    *slog.Logger
}

// NewAnswerer creates an Answerer.
func NewAnswerer(retriever Retriever, provider llm.Provider, opts Options, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Answerer{retriever: retriever, provider: provider, opts: opts, logger: logger}
}

// Answer answers question. Failures are reported inside the Answer text and
// never returned as errors.
func (a *Answerer) Answer(ctx context.Context, question string) Answer {
	hits, err := a.retriever.Retrieve(ctx, question, a.opts.TopK)
	if errors.Is(err, vectordb.ErrNotBuilt) {
		return Answer{Text: NotProcessedAnswer, Sources: []string{}}
	}
	if err != nil {
		a.logger.Warn("retrieval failed", "error", err)
		return failure(err)
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.opts.Model,
		Messages: []llm.Message{
			llm.System(systemPrompt),
			llm.User(buildPrompt(question, hits)),
		},
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		a.logger.Warn("answer completion failed", "error", err)
		return failure(err)
	}

	a.logger.Debug("question answered", "chunks", len(hits),
		"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
	return Answer{Text: strings.TrimSpace(resp.Content), Sources: Sources(hits)}
}

// Sources lists the file names behind hits, first occurrence first.
func Sources(hits []vectordb.Hit) []string {
	sources := []string{}
	seen := make(map[string]bool)
	for _, h := range hits {
		if h.Source == "" || seen[h.Source] {
			continue
		}
		seen[h.Source] = true
		sources = append(sources, h.Source)
	}
	return sources
}

func failure(err error) Answer {
	return Answer{Text: fmt.Sprintf("Error processing query: %v", err), Sources: []string{}}
}

const systemPrompt = `You are an assistant answering questions about a set of invoices. Use only the invoice excerpts provided. If they do not contain the answer, say that you don't know instead of making one up.`

func buildPrompt(question string, hits []vectordb.Hit) string {
	var b strings.Builder

	b.WriteString("## Invoice Excerpts\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "\n[%d] source: %s\n%s\n", i+1, h.Source, h.Content)
	}

	fmt.Fprintf(&b, "\n## Question\n%s\n\nHelpful Answer:", question)
	return b.String()
}
