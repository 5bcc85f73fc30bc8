package vectordb

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunk is a window of one document's raw text.
type Chunk struct {
	ID       string
	Content  string
	Source   string // file name of the owning document
	Path     string
	Position int // index of the chunk within its document
}

// Chunker splits text into fixed-size windows that overlap their neighbours.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker. Non-positive sizes fall back to the defaults
// and an overlap that does not fit inside the window is reduced to size/4.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return Chunker{size: size, overlap: overlap}
}

// Split returns windows starting every size-overlap characters for as long
// as the start lies inside the text, so a text of L characters yields
// ceil(L/(size-overlap)) chunks. Characters are counted in runes.
func (c Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkDocuments chunks every document with non-empty raw text, in order.
// Failed documents contribute nothing. Structurally invalid documents are
// rejected with invoice.ErrInvalidDocument.
func (c Chunker) ChunkDocuments(docs []invoice.ProcessedDocument) ([]Chunk, error) {
	var chunks []Chunk
	for i, d := range docs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		for pos, text := range c.Split(d.Text()) {
			chunks = append(chunks, Chunk{
				ID:       uuid.New().String(),
				Content:  text,
				Source:   d.FileName,
				Path:     d.FilePath,
				Position: pos,
			})
		}
	}
	return chunks, nil
}
