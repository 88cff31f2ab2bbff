// Package reconcile recovers the true done-set from the stores themselves
// when the checkpoint log has fallen behind them — typically after a
// controller crash that lost in-flight completions. It runs offline,
// against committed parts only, and never touches a live worker's store.
package reconcile

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/corpuslab/tokenmill/internal/manifest"
	"github.com/corpuslab/tokenmill/internal/store"
)

// Scanner finds volume ids present in a store but missing from the
// checkpoint done-set.
type Scanner struct {
	done map[string]struct{}
	log  *zap.Logger
}

// NewScanner creates a scanner against a loaded done-set.
func NewScanner(done map[string]struct{}, log *zap.Logger) *Scanner {
	return &Scanner{done: done, log: log}
}

// ScanStore walks one store's parts newest to oldest, reading only the
// docs table's volume-id column. Parts are the scan windows: as soon as
// every id of a window is already checkpointed the scan stops, because
// any earlier part was necessarily committed — and checkpointed — in an
// even earlier pass. A structurally unreadable part or an id outside the
// expected namespace (a truncated or corrupted tail) aborts this store's
// scan with an error rather than returning partial results.
func (s *Scanner) ScanStore(dir string) ([]string, error) {
	parts, err := store.Parts(dir)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", filepath.Base(dir), err)
	}

	var missing []string
	seen := make(map[string]struct{})

	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		ids, err := store.ReadDocIDs(part)
		if err != nil {
			return nil, fmt.Errorf("store %s, part %s: %w",
				filepath.Base(dir), filepath.Base(part), err)
		}

		allDone := true
		for _, id := range ids {
			if !manifest.ValidID(id) {
				return nil, fmt.Errorf("store %s, part %s: id %q outside identifier namespace, store tail corrupt",
					filepath.Base(dir), filepath.Base(part), id)
			}
			if _, ok := s.done[id]; ok {
				continue
			}
			allDone = false
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			missing = append(missing, id)
		}

		if allDone && len(ids) > 0 {
			s.log.Debug("window fully checkpointed, stopping scan",
				zap.String("store", filepath.Base(dir)),
				zap.String("part", filepath.Base(part)),
			)
			break
		}
	}
	return missing, nil
}

// StoreResult is the outcome of scanning one store.
type StoreResult struct {
	Dir     string
	Missing []string
	Err     error
}

// ScanAll scans every store under root. A structural error in one store
// is reported in its result and does not abort the others.
func (s *Scanner) ScanAll(root string) ([]StoreResult, error) {
	dirs, err := store.ListStores(root)
	if err != nil {
		return nil, err
	}
	results := make([]StoreResult, 0, len(dirs))
	for _, dir := range dirs {
		missing, err := s.ScanStore(dir)
		if err != nil {
			s.log.Error("store scan failed", zap.String("store", dir), zap.Error(err))
		}
		results = append(results, StoreResult{Dir: dir, Missing: missing, Err: err})
	}
	return results, nil
}
