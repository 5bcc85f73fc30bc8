package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/db"
	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// Format is an export file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

// ErrUnknownFormat is returned for unsupported format names.
var ErrUnknownFormat = errors.New("unknown export format")

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatSQLite {
		return ".db"
	}
	return "." + string(f)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat validates a single format name, ignoring case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX, FormatSQLite:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ParseFormats parses a comma separated list, dropping duplicates.
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Batch is everything an export can contain.
type Batch struct {
	RunID     string
	Documents []invoice.ProcessedDocument
	Records   []invoice.Record
	Summary   analytics.Summary
}

// Write renders b to w in a streamable format (json, csv or xlsx).
func Write(w io.Writer, f Format, b Batch) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, b.Records)
	case FormatCSV:
		return WriteCSV(w, b.Records)
	case FormatXLSX:
		return WriteXLSX(w, b.Records, b.Summary)
	default:
		return fmt.Errorf("%w: %q cannot be streamed", ErrUnknownFormat, f)
	}
}

// ArchiveName is the SQLite file every sqlite export appends to.
const ArchiveName = "invoices.db"

// Exporter writes batches to timestamped files in a directory.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dir: dir, now: time.Now, logger: logger}
}

// FileName returns the name used for format f at time t.
func FileName(f Format, t time.Time) string {
	return "invoice_data_" + t.Format("20060102_150405") + f.Extension()
}

// Export writes b in every requested format and returns the paths written.
// SQLite exports append the run to the shared ArchiveName archive.
func (e *Exporter) Export(ctx context.Context, formats []Format, b Batch) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	now := e.now()
	var paths []string
	for _, f := range formats {
		var path string
		var err error
		if f == FormatSQLite {
			path = filepath.Join(e.dir, ArchiveName)
			err = e.writeSQLite(ctx, path, now, b)
		} else {
			path = filepath.Join(e.dir, FileName(f, now))
			err = writeFile(path, f, b)
		}
		if err != nil {
			return paths, fmt.Errorf("exporting %s: %w", f, err)
		}
		e.logger.Info("export written", "format", f, "path", path, "records", len(b.Records))
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, f Format, b Batch) error {
	var buf bytes.Buffer
	if err := Write(&buf, f, b); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (e *Exporter) writeSQLite(ctx context.Context, path string, now time.Time, b Batch) error {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveRun(ctx, db.Run{
		ID:        b.RunID,
		CreatedAt: now.UTC(),
		Documents: b.Documents,
		Records:   b.Records,
		Summary:   b.Summary,
	})
}
