package cache

import (
	"testing"
	"time"
)

func memoryBackend(t *testing.T, c ReplayCache) *MemoryReplayCache {
	t.Helper()
	lc, ok := c.(*LoggingReplayCache)
	if !ok {
		t.Fatalf("expected *LoggingReplayCache, got %T", c)
	}
	mc, ok := lc.inner.(*MemoryReplayCache)
	if !ok {
		t.Fatalf("expected memory backend, got %T", lc.inner)
	}
	return mc
}

func TestNewReplayCacheSweepIndependentOfTTL(t *testing.T) {
	c := NewReplayCache(Config{Backend: BackendMemory, TTL: 10 * time.Second}, nil)
	mc := memoryBackend(t, c)
	defer mc.Close()

	if mc.janitorEvery != 5*time.Minute {
		t.Fatalf("expected default sweep of 5m, got %s", mc.janitorEvery)
	}
}

func TestNewReplayCacheCustomSweep(t *testing.T) {
	c := NewReplayCache(Config{Backend: BackendMemory, TTL: time.Hour, Sweep: 30 * time.Second}, nil)
	mc := memoryBackend(t, c)
	defer mc.Close()

	if mc.janitorEvery != 30*time.Second {
		t.Fatalf("expected sweep of 30s, got %s", mc.janitorEvery)
	}
}

func TestNewReplayCacheNone(t *testing.T) {
	if c := NewReplayCache(Config{Backend: BackendNone}, nil); c != nil {
		t.Fatalf("expected nil cache, got %T", c)
	}
}
