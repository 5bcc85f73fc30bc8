package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/qa"
	"github.com/ziadkadry99/invoicer/internal/vectordb"
)

// SemanticIndex is the searchable text of the current batch.
type SemanticIndex interface {
	Build(ctx context.Context, docs []invoice.ProcessedDocument) error
	Retrieve(ctx context.Context, query string, k int) ([]vectordb.Hit, error)
	Stats() vectordb.Stats
}

// Session holds the state of one working session: the latest batch of
// documents and records, the index built from it and the chat transcript.
// A new run replaces the batch wholesale.
type Session struct {
	mu          sync.RWMutex
	runID       string
	processedAt time.Time
	documents   []invoice.ProcessedDocument
	records     []invoice.Record

	index      SemanticIndex
	transcript qa.Transcript
}

// NewSession creates an empty session around index.
func NewSession(index SemanticIndex) *Session {
	return &Session{index: index}
}

// Index returns the session's semantic index.
func (s *Session) Index() SemanticIndex {
	return s.index
}

// Transcript returns the chat history kept for display.
func (s *Session) Transcript() *qa.Transcript {
	return &s.transcript
}

// RunID identifies the latest run, or "" before the first.
func (s *Session) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// ProcessedAt is when the latest run finished.
func (s *Session) ProcessedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processedAt
}

// Documents returns a copy of the current text extraction results.
func (s *Session) Documents() []invoice.ProcessedDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]invoice.ProcessedDocument(nil), s.documents...)
}

// Records returns a copy of the current structured records.
func (s *Session) Records() []invoice.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]invoice.Record(nil), s.records...)
}

func (s *Session) replace(runID string, docs []invoice.ProcessedDocument, records []invoice.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.processedAt = time.Now()
	s.documents = docs
	s.records = records
}
