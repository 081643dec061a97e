package cache

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/metrics"
	"chat-relay/pkg/logging/logging"
)

// LoggingReplayCache logs every lookup and store and counts hits.
type LoggingReplayCache struct {
	inner ReplayCache
}

func NewLoggingReplayCache(inner ReplayCache) *LoggingReplayCache {
	return &LoggingReplayCache{inner: inner}
}

func (c *LoggingReplayCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)

	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
		metrics.ReplayCacheHitsTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Duration("latency", time.Since(start)),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Warn("replay_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("replay_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingReplayCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.Int("bytes", len(value)),
		zap.Duration("ttl", ttl),
		zap.Duration("latency", time.Since(start)),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Warn("replay_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("replay_cache_set", fields...)
	}

	return err
}

// Close closes the wrapped backend if it holds resources.
func (c *LoggingReplayCache) Close() error {
	if closer, ok := c.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
