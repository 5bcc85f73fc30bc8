package embeddings

import (
	"context"
	"time"
)

// TimeoutEmbedder bounds every Embed call with a deadline. Calls are attempted once.
type TimeoutEmbedder struct {
	embedder Embedder
	timeout  time.Duration
}

// WithTimeout wraps e so each call is cancelled after timeout. A non-positive
// timeout returns e unchanged.
func WithTimeout(e Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return e
	}
	return &TimeoutEmbedder{embedder: e, timeout: timeout}
}

func (t *TimeoutEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.embedder.Embed(ctx, texts)
}

func (t *TimeoutEmbedder) Dimensions() int { return t.embedder.Dimensions() }
func (t *TimeoutEmbedder) Name() string    { return t.embedder.Name() }
