package checkpoint

import "github.com/redis/rueidis"

// NewRedisLogForTest creates a RedisLog with the provided rueidis client (test-only).
func NewRedisLogForTest(c rueidis.Client, key string) *RedisLog {
	return &RedisLog{client: c, key: key}
}
