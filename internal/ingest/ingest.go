// Package ingest resolves command line paths, directories and globs into
// the documents of a batch.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/invoicer/internal/invoice"
)

// ErrNoInputs is returned when nothing could be resolved.
var ErrNoInputs = errors.New("no input files found")

// Config controls Resolve.
type Config struct {
	Include []string // Glob patterns applied to files found in directories.
	Exclude []string // Glob patterns; matching files are skipped.
	// Dedupe drops files whose content is identical to an earlier file.
	Dedupe bool
}

// Skipped is a file that was seen but left out of the batch.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of Resolve.
type Result struct {
	Documents []invoice.Document
	Skipped   []Skipped
}

// Resolve expands inputs into documents, in order of first appearance.
//
// Files named explicitly are always kept, even with an unsupported extension
// or over the size limit, so that the batch reports them as failed documents.
// Directories are walked recursively and globs are expanded; in both cases
// only supported invoice formats are picked up.
func Resolve(inputs []string, cfg Config) (*Result, error) {
	res := &Result{}
	seen := make(map[string]bool)
	hashes := make(map[string]string)

	add := func(path string, size int64) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true

		if cfg.Dedupe {
			if sum, err := hashFile(abs); err == nil {
				if first, dup := hashes[sum]; dup {
					res.Skipped = append(res.Skipped, Skipped{Path: abs, Reason: "duplicate of " + filepath.Base(first)})
					return
				}
				hashes[sum] = abs
			}
		}
		res.Documents = append(res.Documents, invoice.NewDocument(abs, size))
	}

	for _, in := range inputs {
		if isGlob(in) {
			matches, err := doublestar.FilepathGlob(in)
			if err != nil {
				return nil, fmt.Errorf("ingest: bad pattern %q: %w", in, err)
			}
			for _, m := range matches {
				info, err := os.Stat(m)
				if err != nil || !info.Mode().IsRegular() {
					continue
				}
				if !accept(res, m, m, cfg) {
					continue
				}
				add(m, info.Size())
			}
			continue
		}

		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		if !info.IsDir() {
			add(in, info.Size())
			continue
		}
		if err := walkDir(in, cfg, res, add); err != nil {
			return nil, err
		}
	}

	if len(res.Documents) == 0 {
		return res, ErrNoInputs
	}
	return res, nil
}

func walkDir(root string, cfg Config, res *Result, add func(string, int64)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if shouldExclude(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if !accept(res, path, relPath, cfg) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		add(path, info.Size())
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingest: walking %s: %w", root, err)
	}
	return nil
}

// accept applies format and pattern filters to a discovered file.
func accept(res *Result, path, relPath string, cfg Config) bool {
	if invoice.KindFromPath(path) == invoice.FormatUnknown {
		res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: "unsupported format"})
		return false
	}
	if !MatchesInclude(relPath, cfg.Include) || MatchesExclude(relPath, cfg.Exclude) {
		return false
	}
	return true
}

// hashFile computes the SHA-256 digest of the given file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
