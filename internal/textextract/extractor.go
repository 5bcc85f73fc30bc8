package textextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// Config names the poppler and tesseract binaries and OCR settings.
type Config struct {
	PdfToText   string
	PdfToPPM    string
	Tesseract   string
	Language    string
	DPI         int
	TessdataDir string
	// MaxFileSize rejects larger documents before any tool runs. 0 disables the check.
	MaxFileSize int64
	// Concurrency bounds ProcessFiles fan-out. Values below 1 mean sequential.
	Concurrency int
}

// Extractor turns documents into raw text: native PDF text first, OCR otherwise.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

// New creates an Extractor that shells out through ExecRunner.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PdfToText == "" {
		cfg.PdfToText = "pdftotext"
	}
	if cfg.PdfToPPM == "" {
		cfg.PdfToPPM = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
}

// WithRunner replaces the command runner.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract converts one document. Failures are returned as data on the
// ProcessedDocument, never as a Go error.
func (e *Extractor) Extract(ctx context.Context, doc invoice.Document) invoice.ProcessedDocument {
	text, err := e.ExtractText(ctx, doc)
	if err != nil {
		e.logger.Warn("text extraction failed", "file", doc.FileName, "error", err)
		return invoice.Failed(doc, err)
	}
	e.logger.Debug("text extracted", "file", doc.FileName, "chars", len(text))
	return invoice.Succeeded(doc, text)
}

// ExtractText dispatches on the file extension.
func (e *Extractor) ExtractText(ctx context.Context, doc invoice.Document) (string, error) {
	if e.cfg.MaxFileSize > 0 && doc.Size > e.cfg.MaxFileSize {
		return "", fmt.Errorf("%w: %s is %.1f MB (limit %.1f MB)", invoice.ErrFileTooLarge,
			doc.FileName, megabytes(doc.Size), megabytes(e.cfg.MaxFileSize))
	}
	switch invoice.KindFromPath(doc.Path) {
	case invoice.FormatPDF:
		return e.extractPDF(ctx, doc.Path)
	case invoice.FormatImage:
		return e.extractImage(ctx, doc.Path)
	default:
		return "", fmt.Errorf("%w: %s", invoice.ErrUnsupportedFormat, strings.ToLower(filepath.Ext(doc.Path)))
	}
}

// ProcessFiles extracts every document independently and returns results in
// input order. onProgress, if set, is called once per document, never concurrently.
func (e *Extractor) ProcessFiles(ctx context.Context, docs []invoice.Document, onProgress invoice.ProgressFunc) []invoice.ProcessedDocument {
	results := make([]invoice.ProcessedDocument, len(docs))

	var g errgroup.Group
	g.SetLimit(max(e.cfg.Concurrency, 1))

	var mu sync.Mutex
	done := 0
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = e.Extract(ctx, doc)
			if onProgress != nil {
				mu.Lock()
				done++
				onProgress(done, len(docs), doc.FileName)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	text, err := e.pdfToText(ctx, path)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if err != nil {
		e.logger.Debug("native pdf text failed, falling back to OCR", "path", path, "error", err)
	} else {
		e.logger.Debug("pdf has no text layer, falling back to OCR", "path", path)
	}

	text, err = e.pdfToOCR(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", invoice.ErrOCRFailure, err)
	}
	return text, nil
}

// pdfToText joins each page's text with a trailing newline.
func (e *Extractor) pdfToText(ctx context.Context, path string) (string, error) {
	out, err := e.run(ctx, e.cfg.PdfToText, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", err
	}
	// pdftotext ends every page with a form feed.
	pages := strings.Split(string(out), "\f")
	if len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// pdfToOCR rasterizes every page and OCRs them in order. Any page failure
// fails the whole document.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "invoicer-pages-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	if _, err := e.run(ctx, e.cfg.PdfToPPM, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix); err != nil {
		return "", err
	}

	images, err := renderedPages(prefix)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, img := range images {
		text, err := e.tesseract(ctx, img)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", i+1, text)
	}
	return b.String(), nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (string, error) {
	text, err := e.tesseract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("image %w: %v", invoice.ErrOCRFailure, err)
	}
	return text, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, err := e.run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, stderr, err := e.runner.Run(ctx, name, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, truncate(msg, 512))
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return out, nil
}

// renderedPages returns pdftoppm's output files ordered by page number.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images")
	}
	pageNum := func(p string) int {
		n, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(p, prefix+"-"), ".png"))
		return n
	}
	slices.SortFunc(matches, func(a, b string) int { return pageNum(a) - pageNum(b) })
	return matches, nil
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
