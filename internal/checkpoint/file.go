package checkpoint

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileLog is the newline-delimited checkpoint file driver. The file is
// opened O_APPEND once and held for the life of the run; every append is
// a single write followed by fsync.
type FileLog struct {
	path string
	f    *os.File
}

var _ Log = (*FileLog)(nil)

// OpenFile opens (creating if absent) a checkpoint file.
func OpenFile(path string) (*FileLog, error) {
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	return &FileLog{path: path, f: f}, nil
}

// Load reads the whole log and returns the done-set.
func (l *FileLog) Load(_ context.Context) (map[string]struct{}, error) {
	f, err := os.Open(filepath.Clean(l.path))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()

	done := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id != "" {
			done[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	return done, nil
}

// Append writes ids to the log, one per line, and syncs.
func (l *FileLog) Append(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if _, err := l.f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (l *FileLog) Close() error {
	return l.f.Close()
}
