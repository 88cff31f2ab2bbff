package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// writeTable writes rows to a new parquet file and syncs it to disk before
// returning. The file must not exist yet.
func writeTable[T any](path string, rows []T) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}

	w := parquet.NewGenericWriter[T](f)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			_ = f.Close()
			return fmt.Errorf("write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// ReadDocs loads a part's per-volume table.
func ReadDocs(partDir string) ([]DocRow, error) {
	rows, err := parquet.ReadFile[DocRow](filepath.Join(partDir, DocsFile))
	if err != nil {
		return nil, fmt.Errorf("read docs table: %w", err)
	}
	return rows, nil
}

// ReadCorpus loads a part's per-corpus table. This is the table the
// downstream wordlist fold consumes; its schema (language, token, count)
// is stable.
func ReadCorpus(partDir string) ([]CorpusRow, error) {
	rows, err := parquet.ReadFile[CorpusRow](filepath.Join(partDir, CorpusFile))
	if err != nil {
		return nil, fmt.Errorf("read corpus table: %w", err)
	}
	return rows, nil
}

// ReadDocIDs scans only the volume_id column of a part's docs table, in
// row order. Column-selective read: other columns are never decoded.
func ReadDocIDs(partDir string) ([]string, error) {
	path := filepath.Join(partDir, DocsFile)
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	idCol := -1
	for i, col := range pf.Schema().Columns() {
		if len(col) > 0 && col[0] == "volume_id" {
			idCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("volume_id column not found in %s", DocsFile)
	}

	var ids []string
	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 256)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				for _, v := range buf[i] {
					if v.Column() == idCol {
						ids = append(ids, v.String())
					}
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	return ids, nil
}
