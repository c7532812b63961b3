package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Veraticus/assembly-verify/internal/model"
)

// cacheEntry is a cached narration.
type cacheEntry struct {
	expiry    time.Time
	narrative string
}

// narrativeCache remembers narrations per frame and prompt so a frame that is described
// twice within one process costs one provider call.
type narrativeCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newNarrativeCache creates a new cache with the specified TTL.
func newNarrativeCache(ttl time.Duration) *narrativeCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &narrativeCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// cacheKey identifies a frame image together with the exact prompt it was shown with.
func cacheKey(frame model.Frame, prompt string) string {
	sum := sha256.Sum256([]byte(frame.Ref() + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// get returns a narration if it exists and hasn't expired.
func (c *narrativeCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return "", false
	}
	return entry.narrative, true
}

// set stores a narration.
func (c *narrativeCache) set(key, narrative string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		narrative: narrative,
		expiry:    time.Now().Add(c.ttl),
	}
}

// size returns the number of stored entries, expired or not.
func (c *narrativeCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanup periodically removes expired entries.
func (c *narrativeCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *narrativeCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *narrativeCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
