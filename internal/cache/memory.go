package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryReplayCache is an in-process TTL map with a bounded entry count.
// When full, expired entries are dropped first, then the entry closest to
// expiry.
type MemoryReplayCache struct {
	mu         sync.RWMutex
	items      map[string]memoryEntry
	maxEntries int

	janitorEvery time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
}

// NewMemoryReplayCache starts a janitor that sweeps expired entries every
// sweep (5 minutes when sweep <= 0). Call Close to stop it.
func NewMemoryReplayCache(sweep time.Duration) *MemoryReplayCache {
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}

	c := &MemoryReplayCache{
		items:        make(map[string]memoryEntry),
		maxEntries:   defaultMaxEntries,
		janitorEvery: sweep,
		stop:         make(chan struct{}),
	}
	go c.janitor()

	return c
}

func (c *MemoryReplayCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && now.After(e.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a copy of value. A ttl <= 0 removes key.
func (c *MemoryReplayCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.items, key)
		return nil
	}

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evictLocked(time.Now())
	}

	c.items[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryReplayCache) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
	)
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
			continue
		}
		if victim == "" || v.expiresAt.Before(earliest) {
			victim, earliest = k, v.expiresAt
		}
	}
	if len(c.items) >= c.maxEntries && victim != "" {
		delete(c.items, victim)
	}
}

func (c *MemoryReplayCache) janitor() {
	ticker := time.NewTicker(c.janitorEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, v := range c.items {
				if now.After(v.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Close stops the janitor.
func (c *MemoryReplayCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryReplayCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
