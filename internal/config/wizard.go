package config

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/manifoldco/promptui"
)

// requiredTools are the external binaries text extraction shells out to.
var requiredTools = []string{"pdftotext", "pdftoppm", "tesseract"}

// missingTools returns the OCR binaries that cannot be found on PATH.
func missingTools(cfg OCRConfig) []string {
	bins := map[string]string{
		"pdftotext": cfg.PdfToText,
		"pdftoppm":  cfg.PdfToPPM,
		"tesseract": cfg.Tesseract,
	}
	var missing []string
	for _, name := range requiredTools {
		if _, err := exec.LookPath(bins[name]); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .invoicer.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to invoicer! Let's configure extraction.")
	fmt.Println()

	cfg := DefaultConfig()

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "anthropic", "openrouter", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	preset := GetPreset(cfg.Provider)
	cfg.EmbeddingProvider = preset.EmbeddingProvider
	cfg.EmbeddingModel = preset.EmbeddingModel

	modelPrompt := promptui.Prompt{
		Label:   "Extraction model",
		Default: preset.Model,
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	exportPrompt := promptui.Prompt{
		Label:   "Export directory",
		Default: cfg.ExportDir,
	}
	if cfg.ExportDir, err = exportPrompt.Run(); err != nil {
		return nil, fmt.Errorf("export dir: %w", err)
	}

	langPrompt := promptui.Prompt{
		Label:   "OCR language (tesseract code)",
		Default: cfg.OCR.Language,
	}
	if cfg.OCR.Language, err = langPrompt.Run(); err != nil {
		return nil, fmt.Errorf("ocr language: %w", err)
	}

	sizePrompt := promptui.Prompt{
		Label:   "Maximum file size (MB)",
		Default: strconv.FormatFloat(cfg.MaxFileSizeMB, 'f', -1, 64),
		Validate: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v <= 0 {
				return fmt.Errorf("enter a positive number")
			}
			return nil
		},
	}
	sizeStr, err := sizePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("max file size: %w", err)
	}
	cfg.MaxFileSizeMB, _ = strconv.ParseFloat(sizeStr, 64)

	for _, envVar := range []string{APIKeyEnvVar(cfg.Provider), APIKeyEnvVar(cfg.EmbeddingProvider)} {
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running invoicer process.\n", envVar)
		}
	}
	if missing := missingTools(cfg.OCR); len(missing) > 0 {
		fmt.Printf("\nNote: %v not found on PATH; PDF and image text extraction will fail until installed.\n", missing)
	}

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}
