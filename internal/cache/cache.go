// Package cache stores upstream JSON bodies of non-streamed completions so
// an identical request can be answered without another upstream call.
package cache

import (
	"context"
	"time"
)

// ReplayCache is implemented by the memory (dev) and Redis (prod) backends.
type ReplayCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
