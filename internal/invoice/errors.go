package invoice

import "errors"

// Failure categories shared across the pipeline. Callers match them with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrOCRFailure        = errors.New("OCR failed")
	ErrCompletionService = errors.New("completion service failure")
	ErrEmbeddingService  = errors.New("embedding service failure")
	ErrSchemaParse       = errors.New("JSON parse error")
	ErrInvalidDocument   = errors.New("invalid processed document")
	ErrFileTooLarge      = errors.New("file exceeds size limit")
)
