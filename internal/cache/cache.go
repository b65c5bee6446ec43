// SPDX-License-Identifier: MIT

// Package cache keeps recently seen chat messages so handlers can look up a
// message's previous content after it is edited or deleted.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/seitokai/internal/metrics"
	"github.com/ManuGH/seitokai/internal/model"
	"github.com/google/uuid"
)

// MessageCache stores messages by id with a fixed TTL.
type MessageCache interface {
	// Get returns the cached message, if present and not expired.
	Get(ctx context.Context, id uuid.UUID) (model.Message, bool)
	// Set stores or replaces msg.
	Set(ctx context.Context, msg model.Message)
	// Delete removes a message. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID)
	// Stats returns cache statistics.
	Stats(ctx context.Context) Stats
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 // Get found a live entry
	Misses      int64 // Get found nothing or an expired entry
	Sets        int64
	Evictions   int64 // expired entries removed by the janitor
	CurrentSize int
}

// Config selects and tunes a backend.
type Config struct {
	Backend       string // "memory" (default), "redis" or "none"
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const defaultTTL = 10 * time.Minute

// Open builds the cache described by cfg.
func Open(ctx context.Context, cfg Config) (MessageCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryCache(cfg.TTL, cfg.TTL), nil
	case "redis":
		c, err := NewRedisCache(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

type entry struct {
	msg        model.Message
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryCache is an in-process MessageCache with a background janitor.
type MemoryCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	janitor   *janitor
	closeOnce sync.Once
}

// NewMemoryCache creates a cache whose entries live for ttl. A positive
// cleanupInterval starts a janitor that drops expired entries.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]*entry),
	}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, id uuid.UUID) (model.Message, bool) {
	c.mu.RLock()
	e, found := c.entries[id]
	c.mu.RUnlock()

	if !found || e.isExpired(c.now()) {
		c.misses.Add(1)
		metrics.RecordCacheLookup("memory", false)
		return model.Message{}, false
	}
	c.hits.Add(1)
	metrics.RecordCacheLookup("memory", true)
	return e.msg, true
}

func (c *MemoryCache) Set(_ context.Context, msg model.Message) {
	c.mu.Lock()
	c.entries[msg.ID] = &entry{msg: msg, expiration: c.now().Add(c.ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *MemoryCache) Delete(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

func (c *MemoryCache) Stats(context.Context) Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// deleteExpired removes expired entries and returns how many were dropped.
func (c *MemoryCache) deleteExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, id)
			count++
		}
	}
	c.evictions.Add(int64(count))
	return count
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		if c.janitor != nil {
			close(c.janitor.stop)
		}
	})
	return nil
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *MemoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

type noOpCache struct{}

// NewNoOpCache returns a cache that never stores anything.
func NewNoOpCache() MessageCache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, uuid.UUID) (model.Message, bool) { return model.Message{}, false }
func (noOpCache) Set(context.Context, model.Message)                   {}
func (noOpCache) Delete(context.Context, uuid.UUID)                    {}
func (noOpCache) Stats(context.Context) Stats                          { return Stats{} }
func (noOpCache) Close() error                                         { return nil }
