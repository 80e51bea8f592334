// Package cache is the token-keyed store of assembled subscription
// documents. Per token the lifecycle is ABSENT → BUILDING → CACHED, back to
// ABSENT on TTL expiry (lazy, checked on read) or explicit invalidation.
// Failed builds never populate the cache.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/elysiawen/SubLinks-sub001/internal/synth"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// BuildFunc runs the full synthesis pipeline for one token.
type BuildFunc func(ctx context.Context, token string) (*synth.Document, error)

type Cache struct {
	build BuildFunc
	ttl   func() time.Duration
	now   func() time.Time // test seam

	mu      sync.Mutex
	entries map[string]entry
	// gen guards against a build result overwriting a concurrent
	// invalidation: a build only stores if the token generation it captured
	// at start is still current. epoch is the same guard for InvalidateAll.
	gen   map[string]uint64
	epoch uint64

	sf singleflight.Group
}

type entry struct {
	doc     *synth.Document
	expires time.Time
}

func New(build BuildFunc, ttl func() time.Duration) *Cache {
	return &Cache{
		build:   build,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
		gen:     make(map[string]uint64),
	}
}

// Get returns the cached document for token, building and caching it first
// on a miss. Concurrent callers for the same absent token share one build.
func (c *Cache) Get(ctx context.Context, token string) (*synth.Document, error) {
	if doc, ok := c.lookup(token); ok {
		hitsTotal.Inc()
		return doc, nil
	}
	missesTotal.Inc()
	return c.buildAndStore(ctx, token)
}

// Invalidate drops token's entry immediately. An in-flight build for the
// token will complete but its result is discarded.
func (c *Cache) Invalidate(token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.gen[token]++
	c.mu.Unlock()
	c.sf.Forget(token)
}

// InvalidateAll drops every entry, including results of builds currently in
// flight.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.epoch++
	c.mu.Unlock()
}

// ForceRefresh is Invalidate immediately followed by Get.
func (c *Cache) ForceRefresh(ctx context.Context, token string) (*synth.Document, error) {
	c.Invalidate(token)
	missesTotal.Inc()
	return c.buildAndStore(ctx, token)
}

func (c *Cache) lookup(token string) (*synth.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[token]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, token)
		return nil, false
	}
	return e.doc, true
}

func (c *Cache) buildAndStore(ctx context.Context, token string) (*synth.Document, error) {
	v, err, _ := c.sf.Do(token, func() (any, error) {
		// A waiter queued behind a finished build finds the entry here.
		if doc, ok := c.lookup(token); ok {
			return doc, nil
		}

		c.mu.Lock()
		gen, epoch := c.gen[token], c.epoch
		c.mu.Unlock()

		start := time.Now()
		doc, err := c.build(ctx, token)
		if err != nil {
			buildFailuresTotal.Inc()
			return nil, err
		}
		buildDuration.Observe(time.Since(start).Seconds())

		c.mu.Lock()
		if c.gen[token] == gen && c.epoch == epoch {
			c.entries[token] = entry{doc: doc, expires: c.now().Add(c.ttl())}
		}
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*synth.Document), nil
}

// PrecacheResult reports one warm-up batch. Failures are per token; a batch
// never aborts because one token failed.
type PrecacheResult struct {
	Requested int
	Succeeded []string
	Failed    map[string]error
}

const DefaultPrecacheConcurrency = 4

// Precache warms the cache for tokens with at most limit concurrent builds.
// With force set, each token is rebuilt even if currently cached.
func (c *Cache) Precache(ctx context.Context, tokens []string, force bool, limit int64) PrecacheResult {
	if limit <= 0 {
		limit = DefaultPrecacheConcurrency
	}
	sem := semaphore.NewWeighted(limit)

	res := PrecacheResult{
		Requested: len(tokens),
		Failed:    make(map[string]error),
	}
	var resMu sync.Mutex
	var wg sync.WaitGroup

	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				resMu.Lock()
				res.Failed[token] = err
				resMu.Unlock()
				return
			}
			defer sem.Release(1)

			var err error
			if force {
				_, err = c.ForceRefresh(ctx, token)
			} else {
				_, err = c.Get(ctx, token)
			}

			resMu.Lock()
			if err != nil {
				res.Failed[token] = err
			} else {
				res.Succeeded = append(res.Succeeded, token)
			}
			resMu.Unlock()
		}(token)
	}
	wg.Wait()
	return res
}
