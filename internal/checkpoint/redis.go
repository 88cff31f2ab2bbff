package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/redis/rueidis"
)

// RedisLog keeps the checkpoint as a Redis/Valkey list, for deployments
// where several controller hosts share one done-set. RPUSH preserves the
// append-only, completion-ordered semantics of the file driver.
type RedisLog struct {
	client rueidis.Client
	key    string
}

var _ Log = (*RedisLog)(nil)

// RedisConfig holds connection parameters for the Redis driver.
type RedisConfig struct {
	Addrs    []string
	Password string
	Key      string
}

// OpenRedis connects the Redis checkpoint driver.
func OpenRedis(cfg RedisConfig) (*RedisLog, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("checkpoint redis driver: addrs is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("checkpoint redis driver: key is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint redis driver: %w", err)
	}
	return &RedisLog{client: client, key: cfg.Key}, nil
}

// Load reads the whole list.
func (l *RedisLog) Load(ctx context.Context) (map[string]struct{}, error) {
	cmd := l.client.B().Lrange().Key(l.key).Start(0).Stop(-1).Build()
	ids, err := l.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint list: %w", err)
	}
	done := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}
	return done, nil
}

// Append pushes ids onto the list. A transient network failure here would
// discard a fully persisted batch, so the push is retried a few times
// before the error is surfaced.
func (l *RedisLog) Append(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	// rueidis commands are single-use; rebuild on every attempt.
	err := retry.Do(
		func() error {
			cmd := l.client.B().Rpush().Key(l.key).Element(ids...).Build()
			return l.client.Do(ctx, cmd).Error()
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("append checkpoint list: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (l *RedisLog) Close() error {
	l.client.Close()
	return nil
}
