// Package checkpoint records successfully processed volume ids so that a
// restarted run can compute its remaining work without touching the
// stores. The log is append-only: entries are written once and never
// rewritten. Only the controller appends, between batch completions, so
// no locking is needed.
package checkpoint

import "context"

// Log is the done-set record. Load reconstructs the full set (linear in
// log size; appends dominate steady-state I/O). Append durably records
// ids whose batch has fully landed in both store tables.
type Log interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Append(ctx context.Context, ids []string) error
	Close() error
}
