package rag

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
)

// DefaultTTL is how long a search answer stays cached.
const DefaultTTL = 10 * time.Minute

// Cache stores search results by cache key.
type Cache interface {
	// Get returns the cached result, or nil when the key is missing or expired.
	Get(ctx context.Context, key string) (*model.SearchResult, error)
	Set(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error
	Close() error
}

// SearchStore is the store-backed cache tier.
type SearchStore interface {
	GetCachedSearch(ctx context.Context, key string) (*model.SearchResult, error)
	SetCachedSearch(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error
}

// NewCache builds the cache tier named by cfg.Backend. st is only used for
// the "store" backend.
func NewCache(ctx context.Context, cfg config.CacheConfig, st SearchStore) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(time.Minute), nil
	case "redis":
		return NewRedisCache(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case "store":
		if st == nil {
			return nil, eris.New("rag: store cache requires a store")
		}
		return &storeCache{st: st}, nil
	case "off":
		return nopCache{}, nil
	default:
		return nil, eris.Errorf("rag: unknown cache backend %q", cfg.Backend)
	}
}

type memoryEntry struct {
	result    model.SearchResult
	expiresAt time.Time
}

// MemoryCache is a process-wide TTL map. A janitor goroutine drops expired
// entries until Close is called.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryCache creates a MemoryCache that sweeps every interval.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go c.janitor(interval)
	}
	return c
}

// Get returns a copy of the cached result.
func (c *MemoryCache) Get(_ context.Context, key string) (*model.SearchResult, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, nil
	}
	r := e.result
	return &r, nil
}

// Set stores a copy of r.
func (c *MemoryCache) Set(_ context.Context, key string, r *model.SearchResult, ttl time.Duration) error {
	if r == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{result: *r, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Close stops the janitor.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

type storeCache struct {
	st SearchStore
}

func (s *storeCache) Get(ctx context.Context, key string) (*model.SearchResult, error) {
	r, err := s.st.GetCachedSearch(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "rag: store cache get")
	}
	return r, nil
}

func (s *storeCache) Set(ctx context.Context, key string, r *model.SearchResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return eris.Wrap(s.st.SetCachedSearch(ctx, key, r, ttl), "rag: store cache set")
}

func (s *storeCache) Close() error { return nil }

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*model.SearchResult, error) { return nil, nil }
func (nopCache) Set(context.Context, string, *model.SearchResult, time.Duration) error {
	return nil
}
func (nopCache) Close() error { return nil }
