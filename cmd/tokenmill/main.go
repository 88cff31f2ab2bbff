// tokenmill extracts per-volume and per-corpus token frequencies from a
// corpus of compressed feature files into per-worker columnar stores.
// Runs are resumable: completed volume ids land in the checkpoint log and
// are excluded from the next run's work set.
//
// Usage:
//
//	tokenmill [-dry-run] [-workers 8] [-batch-size 100]
//
// Env vars:
//
//	ENV — config environment name (default: local), reads config/<ENV>.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/corpuslab/tokenmill/internal/checkpoint"
	"github.com/corpuslab/tokenmill/internal/config"
	"github.com/corpuslab/tokenmill/internal/logger"
	"github.com/corpuslab/tokenmill/internal/manifest"
	"github.com/corpuslab/tokenmill/internal/metrics"
	"github.com/corpuslab/tokenmill/internal/pipeline"
	"github.com/corpuslab/tokenmill/internal/store"
	"github.com/corpuslab/tokenmill/internal/transport/status"
	"github.com/corpuslab/tokenmill/internal/version"
	"github.com/corpuslab/tokenmill/internal/volume"
)

type options struct {
	dryRun    bool
	workers   int
	batchSize int
}

func parseFlags() options {
	var opts options
	flag.BoolVar(&opts.dryRun, "dry-run", false, "partition only, print the plan, touch nothing")
	flag.IntVar(&opts.workers, "workers", 0, "worker pool size (0 = config value)")
	flag.IntVar(&opts.batchSize, "batch-size", 0, "volumes per batch (0 = config value)")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if opts.workers > 0 {
		cfg.Pipeline.Workers = opts.workers
	}
	if opts.batchSize > 0 {
		cfg.Pipeline.BatchSize = opts.batchSize
	}

	log, err := logger.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	if err := run(ctx, cfg, log, opts); err != nil {
		cancel()
		log.Fatal("run failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, opts options) error {
	start := time.Now()
	runID := uuid.NewString()[:8]

	log.Info("Starting tokenmill",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("run_id", runID),
		zap.String("manifest", cfg.Corpus.Manifest),
		zap.String("checkpoint_driver", cfg.Checkpoint.Driver),
		zap.Int("workers", cfg.Pipeline.Workers),
		zap.Int("batch_size", cfg.Pipeline.BatchSize),
	)

	all, err := manifest.Load(cfg.Corpus.Manifest)
	if err != nil {
		return err
	}

	ckpt, err := openCheckpoint(cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer func() { _ = ckpt.Close() }()

	done, err := ckpt.Load(ctx)
	if err != nil {
		return err
	}

	remaining := pipeline.Remaining(all, done)
	batches := pipeline.Batches(remaining, cfg.Pipeline.BatchSize)

	log.Info("work partitioned",
		zap.Int("universe", len(all)),
		zap.Int("checkpointed", len(done)),
		zap.Int("remaining", len(remaining)),
		zap.Int("batches", len(batches)),
	)

	if opts.dryRun {
		fmt.Printf("dry run: %d of %d volumes remaining, %d batches of %d\n",
			len(remaining), len(all), len(batches), cfg.Pipeline.BatchSize)
		return nil
	}
	if len(batches) == 0 {
		log.Info("nothing to do, corpus fully checkpointed")
		return nil
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.CheckpointSize.Set(float64(len(done)))

	progress := pipeline.NewProgress(runID, len(remaining), len(batches))
	srv := status.NewServer(cfg.HTTP.Port, reg, progress, log)
	status.Serve(srv, log)
	defer shutdownStatus(srv)

	disp := pipeline.NewDispatcher(
		cfg.Pipeline.Workers,
		workerFactory(cfg, log, m),
		ckpt, log, progress, m,
	)
	sum, runErr := disp.Run(ctx, batches)

	elapsed := time.Since(start)
	rate := float64(sum.VolumesDone) / elapsed.Seconds()
	log.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("batches_dispatched", sum.Dispatched),
		zap.Int("batches_completed", sum.Completed),
		zap.Int("problem_batches", sum.ProblemBatches),
		zap.Int("volumes_done", sum.VolumesDone),
		zap.Int("volumes_skipped", sum.VolumesFailed),
		zap.Duration("elapsed", elapsed.Round(time.Second)),
		zap.Float64("volumes_per_sec", rate),
	)
	if sum.ProblemBatches > 0 {
		log.Warn("problem batches remain; rerunning the pipeline will retry them",
			zap.Int("problem_batches", sum.ProblemBatches),
		)
	}
	if errors.Is(runErr, context.Canceled) {
		// Operator shutdown: completed work is checkpointed, the rest is
		// picked up by the next run.
		log.Info("run interrupted, resume with another run")
		return nil
	}
	return runErr
}

// workerFactory wires one worker: its exclusive store, its own log file
// and a fresh decoder.
func workerFactory(cfg config.Config, log *zap.Logger, m *metrics.Set) pipeline.WorkerFactory {
	trim := pipeline.TrimPolicy{
		Language: cfg.Trim.Language,
		MinCount: cfg.Trim.MinCount,
	}
	return func(workerID string) (*pipeline.Processor, func(), error) {
		st, err := store.Open(cfg.Store.Dir, workerID)
		if err != nil {
			return nil, nil, fmt.Errorf("worker %s: %w", workerID, err)
		}

		wlog := log.Named(workerID)
		cleanup := func() {}
		if cfg.Logging.Dir != "" {
			var level zapcore.Level
			if err := level.UnmarshalText([]byte(orDefault(cfg.Logging.Level, "info"))); err != nil {
				return nil, nil, fmt.Errorf("worker %s: %w", workerID, err)
			}
			wlog, cleanup, err = logger.NewWorkerLogger(cfg.Logging.Dir, workerID, level)
			if err != nil {
				return nil, nil, fmt.Errorf("worker %s: %w", workerID, err)
			}
		}

		dec := volume.NewFeatureDecoder(cfg.Corpus.Root)
		proc := pipeline.NewProcessor(dec, st, manifest.PathForID, trim, wlog, m)
		return proc, cleanup, nil
	}
}

// openCheckpoint selects the checkpoint log driver.
func openCheckpoint(cfg config.CheckpointConfig) (checkpoint.Log, error) {
	switch cfg.Driver {
	case "file":
		return checkpoint.OpenFile(cfg.Path)
	case "redis":
		return checkpoint.OpenRedis(checkpoint.RedisConfig{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
			Key:      cfg.Key,
		})
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}

func shutdownStatus(srv *http.Server) {
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
