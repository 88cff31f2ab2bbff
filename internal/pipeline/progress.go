package pipeline

import (
	"sync/atomic"
	"time"
)

// Progress exposes live run counters to the status server. All fields are
// updated by the controller as completions drain, so readers only ever
// see committed state.
type Progress struct {
	runID   string
	started time.Time

	batchesTotal     atomic.Int64
	batchesDone      atomic.Int64
	problemBatches   atomic.Int64
	volumesDone      atomic.Int64
	volumesFailed    atomic.Int64
	volumesRemaining atomic.Int64
}

// NewProgress creates the counters for one run.
func NewProgress(runID string, remaining, batches int) *Progress {
	p := &Progress{runID: runID, started: time.Now()}
	p.volumesRemaining.Store(int64(remaining))
	p.batchesTotal.Store(int64(batches))
	return p
}

// Snapshot is the JSON shape served by /progress.
type Snapshot struct {
	RunID          string  `json:"run_id"`
	ElapsedSec     float64 `json:"elapsed_sec"`
	BatchesTotal   int64   `json:"batches_total"`
	BatchesDone    int64   `json:"batches_done"`
	ProblemBatches int64   `json:"problem_batches"`
	VolumesDone    int64   `json:"volumes_done"`
	VolumesFailed  int64   `json:"volumes_failed"`
	VolumesLeft    int64   `json:"volumes_left"`
}

// Snapshot returns a consistent-enough copy of the counters.
func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		RunID:          p.runID,
		ElapsedSec:     time.Since(p.started).Seconds(),
		BatchesTotal:   p.batchesTotal.Load(),
		BatchesDone:    p.batchesDone.Load(),
		ProblemBatches: p.problemBatches.Load(),
		VolumesDone:    p.volumesDone.Load(),
		VolumesFailed:  p.volumesFailed.Load(),
		VolumesLeft:    p.volumesRemaining.Load(),
	}
}
