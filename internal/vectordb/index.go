package vectordb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/invoicer/internal/embeddings"
	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// ErrNotBuilt is returned by Retrieve before the first successful Build.
// It is a status, not a failure of the index.
var ErrNotBuilt = errors.New("semantic index not built")

const (
	metaSource   = "source"
	metaPath     = "file_path"
	metaPosition = "position"
	metaSeq      = "seq"

	collectionName = "invoices"
	indexFile      = "index.gob.gz"
)

// Hit is one retrieved chunk.
type Hit struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Path       string  `json:"file_path"`
	Position   int     `json:"position"`
	Similarity float32 `json:"similarity"`
}

// Stats describes the current snapshot.
type Stats struct {
	Built     bool      `json:"built"`
	Chunks    int       `json:"chunks"`
	Documents int       `json:"documents,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
}

// snapshot is an immutable, fully embedded collection.
type snapshot struct {
	db         *chromem.DB
	collection *chromem.Collection
	documents  int
	builtAt    time.Time
}

// Index is a semantic index over document chunks. Each Build replaces the
// whole index; readers keep using the previous snapshot until the swap.
type Index struct {
	embedder embeddings.Embedder
	chunker  Chunker
	logger   *slog.Logger

	mu   sync.RWMutex
	snap *snapshot
}

// NewIndex creates an empty, unbuilt index.
func NewIndex(embedder embeddings.Embedder, chunker Chunker, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{embedder: embedder, chunker: chunker, logger: logger}
}

// Build chunks and embeds docs, then atomically replaces the current index.
// When no document has text, Build does nothing and any earlier index stays.
// It fails on structurally invalid documents or embedding errors, leaving the
// current index untouched.
func (idx *Index) Build(ctx context.Context, docs []invoice.ProcessedDocument) error {
	chunks, err := idx.chunker.ChunkDocuments(docs)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		idx.logger.Info("no extractable text, index left unchanged", "documents", len(docs))
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	start := time.Now()
	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", invoice.ErrEmbeddingService, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", invoice.ErrEmbeddingService, len(vectors), len(chunks))
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, embeddings.ToChromemFunc(idx.embedder))
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	cdocs := make([]chromem.Document, len(chunks))
	sources := make(map[string]bool)
	for i, c := range chunks {
		sources[c.Source] = true
		cdocs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				metaSource:   c.Source,
				metaPath:     c.Path,
				metaPosition: strconv.Itoa(c.Position),
				metaSeq:      strconv.Itoa(i),
			},
			Embedding: vectors[i],
		}
	}
	if err := col.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add chunks: %w", err)
	}

	idx.mu.Lock()
	idx.snap = &snapshot{db: db, collection: col, documents: len(sources), builtAt: time.Now()}
	idx.mu.Unlock()

	idx.logger.Info("index built", "chunks", len(chunks), "documents", len(sources), "duration", time.Since(start))
	return nil
}

// Built reports whether a snapshot exists.
func (idx *Index) Built() bool {
	return idx.current() != nil
}

// Stats returns information about the current snapshot.
func (idx *Index) Stats() Stats {
	snap := idx.current()
	if snap == nil {
		return Stats{}
	}
	return Stats{Built: true, Chunks: snap.collection.Count(), Documents: snap.documents, BuiltAt: snap.builtAt}
}

// Retrieve returns the k chunks most similar to query, most similar first.
// Equal scores keep the order chunks were added in. Before the first build it
// returns ErrNotBuilt.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	snap := idx.current()
	if snap == nil {
		return nil, ErrNotBuilt
	}
	if k <= 0 {
		return nil, nil
	}

	vectors, err := idx.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", invoice.ErrEmbeddingService, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for the query", invoice.ErrEmbeddingService, len(vectors))
	}

	// Score everything so ties can be broken deterministically.
	results, err := snap.collection.QueryEmbedding(ctx, vectors[0], snap.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]Hit, len(results))
	seq := make([]int, len(results))
	for i, r := range results {
		pos, _ := strconv.Atoi(r.Metadata[metaPosition])
		seq[i], _ = strconv.Atoi(r.Metadata[metaSeq])
		hits[i] = Hit{
			Content:    r.Content,
			Source:     r.Metadata[metaSource],
			Path:       r.Metadata[metaPath],
			Position:   pos,
			Similarity: r.Similarity,
		}
	}
	order := make([]int, len(hits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ha, hb := hits[order[a]], hits[order[b]]
		if ha.Similarity != hb.Similarity {
			return ha.Similarity > hb.Similarity
		}
		return seq[order[a]] < seq[order[b]]
	})

	n := min(k, len(order))
	top := make([]Hit, n)
	for i := 0; i < n; i++ {
		top[i] = hits[order[i]]
	}
	return top, nil
}

// Persist writes the current snapshot to dir.
func (idx *Index) Persist(dir string) error {
	snap := idx.current()
	if snap == nil {
		return ErrNotBuilt
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return snap.db.ExportToFile(filepath.Join(dir, indexFile), true, "")
}

// Load replaces the current snapshot with one previously written by Persist.
// The document count is not stored and reads as zero afterwards.
func (idx *Index) Load(dir string) error {
	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(dir, indexFile), ""); err != nil {
		return fmt.Errorf("import index: %w", err)
	}
	col := db.GetCollection(collectionName, embeddings.ToChromemFunc(idx.embedder))
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}

	idx.mu.Lock()
	idx.snap = &snapshot{db: db, collection: col, builtAt: time.Now()}
	idx.mu.Unlock()
	return nil
}

func (idx *Index) current() *snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap
}
