package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corpuslab/tokenmill/internal/checkpoint"
	"github.com/corpuslab/tokenmill/internal/metrics"
)

// BatchResult is one completed batch as seen by the controller.
type BatchResult struct {
	Worker    string
	Done      []string
	Attempted int
	Failed    int
	Err       error
	Elapsed   time.Duration
}

// WorkerFactory builds the processor for one worker. The returned cleanup
// runs when the worker drains its last batch.
type WorkerFactory func(workerID string) (*Processor, func(), error)

// Dispatcher fans batches out to a fixed worker pool and consumes results
// as they complete, in whatever order they complete. Every non-empty done
// list is appended to the checkpoint log immediately, so a mid-run crash
// preserves all finished work.
type Dispatcher struct {
	workers    int
	newWorker  WorkerFactory
	ckpt       checkpoint.Log
	log        *zap.Logger
	progress   *Progress
	metricsSet *metrics.Set // may be nil
}

// NewDispatcher creates a dispatcher over a pool of workers.
func NewDispatcher(
	workers int, factory WorkerFactory, ckpt checkpoint.Log,
	log *zap.Logger, progress *Progress, m *metrics.Set,
) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		workers:    workers,
		newWorker:  factory,
		ckpt:       ckpt,
		log:        log,
		progress:   progress,
		metricsSet: m,
	}
}

// Summary is the controller's final account of a run.
type Summary struct {
	Dispatched     int
	Completed      int
	ProblemBatches int
	VolumesDone    int
	VolumesFailed  int
}

// Run processes all batches and returns the run summary. Cancellation
// stops submission of new batches; in-flight batches finish so their
// append atomicity is preserved. Draining the results channel is the only
// place the controller blocks.
func (d *Dispatcher) Run(ctx context.Context, batches [][]string) (Summary, error) {
	in := make(chan []string)
	results := make(chan BatchResult, d.workers)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(workerID string) {
			defer wg.Done()
			d.worker(ctx, workerID, in, results)
		}(workerID(i))
	}

	dispatched := 0
	go func() {
		defer close(in)
		for _, b := range batches {
			select {
			case <-ctx.Done():
				d.log.Info("shutdown requested, no further batches submitted")
				return
			case in <- b:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var sum Summary
	for r := range results {
		dispatched++
		sum.VolumesFailed += r.Failed
		if d.progress != nil {
			d.progress.volumesFailed.Add(int64(r.Failed))
		}

		if r.Err != nil {
			sum.ProblemBatches++
			if d.progress != nil {
				d.progress.problemBatches.Add(1)
			}
			d.log.Error("problem batch, will be retried on the next run",
				zap.String("worker", r.Worker),
				zap.Int("volumes", r.Attempted),
				zap.Error(r.Err),
			)
			continue
		}

		if len(r.Done) > 0 {
			if err := d.ckpt.Append(ctx, r.Done); err != nil {
				// The batch is persisted but unlogged; the recovery
				// scanner will find it. Count it as a problem so the
				// operator knows to reconcile.
				sum.ProblemBatches++
				d.log.Error("checkpoint append failed, store and log have diverged; run the recovery scanner",
					zap.String("worker", r.Worker),
					zap.Int("volumes", len(r.Done)),
					zap.Error(err),
				)
				continue
			}
		}

		sum.Completed++
		sum.VolumesDone += len(r.Done)
		if d.progress != nil {
			d.progress.batchesDone.Add(1)
			d.progress.volumesDone.Add(int64(len(r.Done)))
			d.progress.volumesRemaining.Add(-int64(len(r.Done)))
		}
		if d.metricsSet != nil {
			d.metricsSet.CheckpointSize.Add(float64(len(r.Done)))
		}

		d.log.Info("batch done",
			zap.String("worker", r.Worker),
			zap.Int("done", len(r.Done)),
			zap.Int("skipped", r.Failed),
			zap.Duration("elapsed", r.Elapsed),
		)
	}

	sum.Dispatched = dispatched
	return sum, ctx.Err()
}

// worker builds its processor (and with it, its exclusive store) and
// drains batches until the channel closes.
func (d *Dispatcher) worker(ctx context.Context, id string, in <-chan []string, out chan<- BatchResult) {
	proc, cleanup, err := d.newWorker(id)
	if err != nil {
		// Without a processor every batch this worker would take must
		// fail; report them as problem batches instead of hanging.
		d.log.Error("worker startup failed", zap.String("worker", id), zap.Error(err))
		for b := range in {
			out <- BatchResult{Worker: id, Attempted: len(b), Err: err}
		}
		return
	}
	defer cleanup()

	for b := range in {
		if d.metricsSet != nil {
			d.metricsSet.BatchesTotal.Inc()
		}
		start := time.Now()
		done, failed, err := proc.Process(ctx, b)
		out <- BatchResult{
			Worker:    id,
			Done:      done,
			Attempted: len(b),
			Failed:    failed,
			Err:       err,
			Elapsed:   time.Since(start),
		}
	}
}

// workerID names a worker; the name keys its store directory and log file.
func workerID(i int) string {
	return fmt.Sprintf("w%02d", i)
}
