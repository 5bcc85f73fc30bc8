package config

import "time"

// ProviderPreset describes the models used when a provider is picked without
// naming models explicitly.
type ProviderPreset struct {
	Model             string
	EmbeddingProvider ProviderType
	EmbeddingModel    string
}

var providerPresets = map[ProviderType]ProviderPreset{
	ProviderOpenAI: {
		Model:             "gpt-4-turbo-preview",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
	},
	ProviderAnthropic: {
		Model:             "claude-sonnet-4-5-20250929",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
	},
	ProviderOpenRouter: {
		Model:             "openai/gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
	},
	ProviderOllama: {
		Model:             "llama3",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
	},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4-turbo-preview",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Temperature:       0.1,
		MaxTokens:         4000,
		RequestTimeout:    2 * time.Minute,
		MaxConcurrency:    4,
		ChunkSize:         1000,
		ChunkOverlap:      200,
		TopK:              3,
		MaxFileSizeMB:     10,
		ExportDir:         "data/exports",
		OCR: OCRConfig{
			PdfToText: "pdftotext",
			PdfToPPM:  "pdftoppm",
			Tesseract: "tesseract",
			Language:  "eng",
			DPI:       300,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// GetPreset returns the preset for the given provider.
// Returns the OpenAI preset if the provider is unknown.
func GetPreset(provider ProviderType) ProviderPreset {
	if preset, ok := providerPresets[provider]; ok {
		return preset
	}
	return providerPresets[ProviderOpenAI]
}
