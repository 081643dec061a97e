package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string
	TTL     time.Duration
	Prefix  string

	// Sweep is the memory backend's expiry sweep interval. Zero uses the
	// backend default.
	Sweep time.Duration
}

// NewReplayCache returns the configured backend wrapped with logging and
// metrics, or nil when caching is disabled.
func NewReplayCache(cfg Config, redisClient *redis.Client) ReplayCache {
	switch cfg.Backend {
	case BackendRedis:
		return NewLoggingReplayCache(NewRedisReplayCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		}))
	case BackendMemory:
		return NewLoggingReplayCache(NewMemoryReplayCache(cfg.Sweep))
	default:
		return nil
	}
}
