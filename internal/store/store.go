// Package store persists token-frequency tables as per-worker columnar
// stores. A store is a directory of immutable parquet part pairs, one pair
// per appended batch; parts are written to a temp directory and committed
// with a single rename, which makes the batch append atomic.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MaxIDBytes is the fixed width of the volume-id column.
	MaxIDBytes = 25
	// MaxTokenBytes is the fixed width of the token column.
	MaxTokenBytes = 50

	// DocsFile and CorpusFile are the two tables of every part.
	DocsFile   = "docs.parquet"
	CorpusFile = "corpus.parquet"

	partPrefix = "part-"
	tmpSuffix  = ".tmp"

	// maxParts bounds the zero-padded part numbering. Past it the
	// lexicographic part listing would no longer match append order.
	maxParts = 1000000
)

// DocRow is one per-volume table entry: (volume id, token) -> count.
// Language is dropped at this granularity.
type DocRow struct {
	VolumeID string `parquet:"volume_id,dict,zstd"`
	Token    string `parquet:"token,dict,zstd"`
	Count    int64  `parquet:"count,zstd"`
}

// CorpusRow is one per-corpus table entry: (language, token) -> count
// summed across the batch's volumes.
type CorpusRow struct {
	Language string `parquet:"language,dict,zstd"`
	Token    string `parquet:"token,dict,zstd"`
	Count    int64  `parquet:"count,zstd"`
}

// Store is one worker's columnar store. Exclusively written by its owning
// worker; parts already committed are freely readable by anyone.
type Store struct {
	dir string
	seq int
}

// Open creates or reopens the store directory for a worker. Leftover temp
// directories from a crashed run are swept; committed parts are never
// touched. The next part number continues after the highest committed one.
func Open(root, workerID string) (*Store, error) {
	dir := filepath.Join(root, workerID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if err := sweepTemp(dir); err != nil {
		return nil, err
	}
	parts, err := Parts(dir)
	if err != nil {
		return nil, err
	}
	seq := 0
	if len(parts) > 0 {
		last := filepath.Base(parts[len(parts)-1])
		if _, err := fmt.Sscanf(last, partPrefix+"%d", &seq); err != nil {
			return nil, fmt.Errorf("malformed part name %q: %w", last, err)
		}
		seq++
	}
	return &Store{dir: dir, seq: seq}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// AppendBatch writes one batch's rows as a new committed part. Either the
// whole part lands (both tables) or nothing does: rows go to a temp
// directory first and the final rename is the commit point. A part is
// written even when both tables are empty, so an all-empty batch still
// counts as done.
func (s *Store) AppendBatch(docs []DocRow, corpus []CorpusRow) error {
	if err := validateWidths(docs, corpus); err != nil {
		return err
	}
	if s.seq >= maxParts {
		return fmt.Errorf("store %s reached the %d-part limit", s.dir, maxParts)
	}

	name := fmt.Sprintf("%s%06d", partPrefix, s.seq)
	tmp := filepath.Join(s.dir, name+tmpSuffix)
	if err := os.MkdirAll(tmp, 0o750); err != nil {
		return fmt.Errorf("create part temp dir: %w", err)
	}

	if err := writeTable(filepath.Join(tmp, DocsFile), docs); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("write docs table: %w", err)
	}
	if err := writeTable(filepath.Join(tmp, CorpusFile), corpus); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("write corpus table: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("commit part %s: %w", name, err)
	}
	s.seq++
	return nil
}

// validateWidths enforces the fixed column widths of the store schema.
// Tokens arrive pre-truncated from the extractor; an oversized value here
// is a programming error upstream, not data to be silently clipped.
func validateWidths(docs []DocRow, corpus []CorpusRow) error {
	for _, r := range docs {
		if len(r.VolumeID) > MaxIDBytes {
			return fmt.Errorf("volume id %q exceeds %d bytes", r.VolumeID, MaxIDBytes)
		}
		if len(r.Token) > MaxTokenBytes {
			return fmt.Errorf("token %q exceeds %d bytes", r.Token, MaxTokenBytes)
		}
	}
	for _, r := range corpus {
		if len(r.Token) > MaxTokenBytes {
			return fmt.Errorf("token %q exceeds %d bytes", r.Token, MaxTokenBytes)
		}
	}
	return nil
}

// Parts lists the committed part directories of a store, oldest first.
func Parts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var parts []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, partPrefix) || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		parts = append(parts, filepath.Join(dir, name))
	}
	sort.Strings(parts)
	return parts, nil
}

// ListStores returns the per-worker store directories under root, sorted.
func ListStores(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// sweepTemp removes uncommitted part temp directories. Safe on reopen:
// only this worker ever writes the directory.
func sweepTemp(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read store dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), tmpSuffix) {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("sweep %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}
