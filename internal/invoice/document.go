package invoice

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FormatKind identifies how a document's text is obtained.
type FormatKind string

const (
	FormatPDF     FormatKind = "pdf"
	FormatImage   FormatKind = "image"
	FormatUnknown FormatKind = ""
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// KindFromPath classifies a file by its extension, ignoring case.
func KindFromPath(path string) FormatKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return FormatPDF
	case imageExtensions[ext]:
		return FormatImage
	default:
		return FormatUnknown
	}
}

// Document is one input file of a batch.
type Document struct {
	FileName string     `json:"file_name"`
	Path     string     `json:"file_path"`
	Format   FormatKind `json:"format"`
	Size     int64      `json:"size"`
}

// NewDocument builds a Document for a local path, deriving name and kind from it.
func NewDocument(path string, size int64) Document {
	return Document{
		FileName: filepath.Base(path),
		Path:     path,
		Format:   KindFromPath(path),
		Size:     size,
	}
}

// ProcessedDocument is the text extraction outcome for one Document.
// Exactly one of RawText and Error is set. RawText may point at an empty
// string when OCR legitimately produced no characters.
type ProcessedDocument struct {
	FileName string  `json:"file_name"`
	FilePath string  `json:"file_path"`
	RawText  *string `json:"raw_text,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Succeeded builds a successful ProcessedDocument.
func Succeeded(doc Document, text string) ProcessedDocument {
	return ProcessedDocument{FileName: doc.FileName, FilePath: doc.Path, RawText: &text}
}

// Failed builds a failed ProcessedDocument carrying the error message.
func Failed(doc Document, err error) ProcessedDocument {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ProcessedDocument{FileName: doc.FileName, FilePath: doc.Path, Error: msg}
}

// OK reports whether text extraction succeeded.
func (p ProcessedDocument) OK() bool {
	return p.RawText != nil && p.Error == ""
}

// Text returns the extracted text, or "" for failed documents.
func (p ProcessedDocument) Text() string {
	if p.RawText == nil {
		return ""
	}
	return *p.RawText
}

// Validate checks the raw_text/error exclusivity and provenance.
func (p ProcessedDocument) Validate() error {
	if p.FileName == "" {
		return fmt.Errorf("%w: missing file name", ErrInvalidDocument)
	}
	hasText := p.RawText != nil
	hasErr := p.Error != ""
	if hasText == hasErr {
		return fmt.Errorf("%w: %s must carry exactly one of raw_text or error", ErrInvalidDocument, p.FileName)
	}
	return nil
}

// ProgressFunc is called as batch items complete. name is the file just finished.
type ProgressFunc func(done, total int, name string)
