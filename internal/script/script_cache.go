package script

import (
	"log/slog"
	"sync"
)

// ScriptCache maps script names to the digest last confirmed loaded on the
// currently connected store. It is only ever cleared wholesale: after a
// connection error the next instance may not have any scripts loaded.
type ScriptCache struct {
	digests    map[string]string
	generation uint64
	metrics    *Metrics
	mu         sync.RWMutex
}

// NewScriptCache creates an empty digest cache
func NewScriptCache(metrics *Metrics) *ScriptCache {
	return &ScriptCache{
		digests: make(map[string]string),
		metrics: metrics,
	}
}

// Get returns the cached digest for a script
func (c *ScriptCache) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	digest, ok := c.digests[name]
	if ok {
		c.metrics.cacheHits.Inc()
	} else {
		c.metrics.cacheMisses.Inc()
	}
	return digest, ok
}

// Generation returns the current invalidation generation. Callers read it
// before talking to the store and pass it back to Set.
func (c *ScriptCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Set stores a digest confirmed during the given generation. The write is
// dropped if the cache was invalidated since, and false is returned.
func (c *ScriptCache) Set(name, digest string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		slog.Debug("Dropping digest confirmed before cache invalidation",
			"script", name,
			"digest", digest)
		return false
	}

	c.digests[name] = digest
	c.metrics.cacheSize.Set(float64(len(c.digests)))
	return true
}

// SetAll stores digests confirmed during the given generation
func (c *ScriptCache) SetAll(digests map[string]string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		slog.Debug("Dropping bulk digests confirmed before cache invalidation", "count", len(digests))
		return false
	}

	for name, digest := range digests {
		c.digests[name] = digest
	}
	c.metrics.cacheSize.Set(float64(len(c.digests)))
	return true
}

// InvalidateAll clears every cached digest and returns how many were dropped
func (c *ScriptCache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := len(c.digests)
	c.digests = make(map[string]string)
	c.generation++
	c.metrics.cacheInvalidated.Inc()
	c.metrics.cacheSize.Set(0)
	return dropped
}

// Len returns the number of cached digests
func (c *ScriptCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.digests)
}

// Snapshot returns a copy of the cached digests
func (c *ScriptCache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.digests))
	for name, digest := range c.digests {
		out[name] = digest
	}
	return out
}
