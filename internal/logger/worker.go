package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewWorkerLogger creates one append-only, ISO8601-timestamped log file
// per worker under dir. The per-worker files can be merge-sorted by
// timestamp to reconstruct a whole run. The returned close func syncs and
// releases the file.
func NewWorkerLogger(dir, workerID string, level zapcore.Level) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, workerID+".log")
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open worker log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(f),
		level,
	)
	l := zap.New(core).Named(workerID)

	closeFn := func() {
		_ = l.Sync()
		_ = f.Close()
	}
	return l, closeFn, nil
}
