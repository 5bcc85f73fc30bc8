package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/config"
	"github.com/ziadkadry99/invoicer/internal/embeddings"
	"github.com/ziadkadry99/invoicer/internal/extraction"
	"github.com/ziadkadry99/invoicer/internal/llm"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/progress"
	"github.com/ziadkadry99/invoicer/internal/qa"
	"github.com/ziadkadry99/invoicer/internal/textextract"
	"github.com/ziadkadry99/invoicer/internal/vectordb"
)

// app bundles the components a command works with.
type app struct {
	cfg    *config.Config
	orch   *pipeline.Orchestrator
	index  *vectordb.Index
	usage  *llm.UsageTracker
	logger *slog.Logger
}

// newApp wires providers, extractors and the session pipeline from cfg.
func newApp(cfg *config.Config, reporter progress.Reporter) (*app, error) {
	logger := slog.Default()

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	usage := llm.NewUsageTracker(llm.Wrap(provider, llm.Options{
		Timeout:           cfg.RequestTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}), cfg.Model)

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	embedder = embeddings.WithTimeout(embedder, cfg.RequestTimeout)

	text := textextract.New(textextract.Config{
		PdfToText:   cfg.OCR.PdfToText,
		PdfToPPM:    cfg.OCR.PdfToPPM,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		DPI:         cfg.OCR.DPI,
		TessdataDir: cfg.OCR.TessdataDir,
		MaxFileSize: cfg.MaxFileSizeBytes(),
		Concurrency: cfg.MaxConcurrency,
	}, logger)

	fields := extraction.New(usage, extraction.Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Concurrency: cfg.MaxConcurrency,
	}, logger)

	index := vectordb.NewIndex(embedder, vectordb.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), logger)

	answerer := qa.NewAnswerer(index, usage, qa.Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopK:        cfg.TopK,
	}, logger)

	orch := pipeline.New(pipeline.Deps{
		Text:     text,
		Fields:   fields,
		Answerer: answerer,
		Analyst:  analytics.NewAnalyst(usage, cfg.Model, cfg.MaxTokens, cfg.Temperature, logger),
		Reporter: reporter,
	}, pipeline.NewSession(index), logger)

	return &app{cfg: cfg, orch: orch, index: index, usage: usage, logger: logger}, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
// Providers without an embeddings endpoint fall back to their preset.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	model := cfg.EmbeddingModel
	if provider == "" {
		preset := config.GetPreset(cfg.Provider)
		provider = preset.EmbeddingProvider
		if model == "" {
			model = preset.EmbeddingModel
		}
	}
	return embeddings.New(string(provider), model)
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), cfg.Model)
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `invoicer init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}
