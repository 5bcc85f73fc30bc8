package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// Config is the top-level invoicer configuration, corresponding to .invoicer.yml.
type Config struct {
	Provider          ProviderType  `yaml:"provider" koanf:"provider"`
	Model             string        `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType  `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string        `yaml:"embedding_model" koanf:"embedding_model"`
	Temperature       float64       `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
	RequestTimeout    time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	MaxConcurrency    int           `yaml:"max_concurrency" koanf:"max_concurrency"`
	ChunkSize         int           `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap      int           `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	TopK              int           `yaml:"top_k" koanf:"top_k"`
	MaxFileSizeMB     float64       `yaml:"max_file_size_mb" koanf:"max_file_size_mb"`
	ExportDir         string        `yaml:"export_dir" koanf:"export_dir"`
	OCR               OCRConfig     `yaml:"ocr" koanf:"ocr"`
	Server            ServerConfig  `yaml:"server" koanf:"server"`
}

// OCRConfig locates the poppler and tesseract binaries.
type OCRConfig struct {
	PdfToText   string `yaml:"pdftotext" koanf:"pdftotext"`
	PdfToPPM    string `yaml:"pdftoppm" koanf:"pdftoppm"`
	Tesseract   string `yaml:"tesseract" koanf:"tesseract"`
	Language    string `yaml:"language" koanf:"language"`
	DPI         int    `yaml:"dpi" koanf:"dpi"`
	TessdataDir string `yaml:"tessdata_dir" koanf:"tessdata_dir"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host            string `yaml:"host" koanf:"host"`
	Port            int    `yaml:"port" koanf:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	// Root confines the paths /api/process accepts. Empty means the working directory.
	Root string `yaml:"root" koanf:"root"`
}
