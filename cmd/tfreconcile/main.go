// tfreconcile is the offline recovery scanner. It inspects the columnar
// stores directly and reports volume ids that are persisted but missing
// from the checkpoint log — the divergence left behind when a controller
// crash loses in-flight completions. With -apply the missing ids are
// appended to the checkpoint log; without it the tool only reports.
//
// Usage:
//
//	tfreconcile [-apply] [-store-dir DIR]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/corpuslab/tokenmill/internal/checkpoint"
	"github.com/corpuslab/tokenmill/internal/config"
	"github.com/corpuslab/tokenmill/internal/logger"
	"github.com/corpuslab/tokenmill/internal/reconcile"
)

func main() {
	apply := flag.Bool("apply", false, "append recovered ids to the checkpoint log")
	storeDir := flag.String("store-dir", "", "store root override (default: config store.dir)")
	flag.Parse()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *storeDir != "" {
		cfg.Store.Dir = *storeDir
	}

	log, err := logger.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(context.Background(), cfg, log, *apply); err != nil {
		log.Fatal("reconcile failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, apply bool) error {
	ckpt, err := openCheckpoint(cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer func() { _ = ckpt.Close() }()

	done, err := ckpt.Load(ctx)
	if err != nil {
		return err
	}
	log.Info("checkpoint loaded", zap.Int("ids", len(done)))

	scanner := reconcile.NewScanner(done, log)
	results, err := scanner.ScanAll(cfg.Store.Dir)
	if err != nil {
		return err
	}

	var recovered []string
	failedStores := 0
	for _, r := range results {
		if r.Err != nil {
			failedStores++
			fmt.Fprintf(os.Stderr, "%s: ERROR: %v\n", r.Dir, r.Err)
			continue
		}
		fmt.Printf("%s: %d unlogged ids\n", r.Dir, len(r.Missing))
		for _, id := range r.Missing {
			fmt.Println("  " + id)
		}
		recovered = append(recovered, r.Missing...)
	}

	if apply && len(recovered) > 0 {
		if err := ckpt.Append(ctx, recovered); err != nil {
			return fmt.Errorf("apply recovered ids: %w", err)
		}
		log.Info("recovered ids appended to checkpoint", zap.Int("ids", len(recovered)))
	}

	if failedStores > 0 {
		return fmt.Errorf("%d store(s) could not be scanned", failedStores)
	}
	return nil
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
