package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/freshet/freshet/internal/domain/msg"
	"github.com/freshet/freshet/internal/port/cache"
)

// ForwardMsgCache deduplicates large delta payloads across reruns. A rerun
// usually regenerates most of the previous run's messages byte-for-byte;
// once a client has received a payload, later identical payloads are
// replaced by a small reference message and the full bytes stay available
// from the cache for clients that missed them.
type ForwardMsgCache struct {
	cache cache.Cache
	log   *slog.Logger

	// threshold is the minimum encoded size worth caching. Small messages
	// cost more as cache traffic than as payload.
	threshold int

	// maxAge is how many script runs an unreferenced entry stays pinned to a
	// session before the client is assumed to have evicted it.
	maxAge int

	mu       sync.Mutex
	sessions map[string]*sessionEntries
}

type sessionEntries struct {
	run    int
	hashes map[string]int // hash -> run it was last sent in
}

// NewForwardMsgCache builds a cache over the given backend. thresholdBytes
// at or below zero disables caching entirely.
func NewForwardMsgCache(backend cache.Cache, thresholdBytes, maxAgeRuns int, log *slog.Logger) *ForwardMsgCache {
	return &ForwardMsgCache{
		cache:     backend,
		log:       log,
		threshold: thresholdBytes,
		maxAge:    maxAgeRuns,
		sessions:  make(map[string]*sessionEntries),
	}
}

// Prepare returns the message to deliver to sessionID in place of m: either
// m itself, annotated with its content hash so the client caches it, or a
// bare reference when this session already holds the payload. Lifecycle
// messages and small deltas pass through untouched.
func (c *ForwardMsgCache) Prepare(ctx context.Context, sessionID string, m *msg.ForwardMsg) *msg.ForwardMsg {
	if c.threshold <= 0 || !m.IsDelta() {
		return m
	}
	data, err := msg.Encode(m)
	if err != nil || len(data) < c.threshold {
		return m
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64(data))

	if err := c.cache.Set(ctx, cacheKey(hash), data, 0); err != nil {
		c.log.Warn("forward message cache store failed", "hash", hash, "error", err)
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	se, ok := c.sessions[sessionID]
	if !ok {
		se = &sessionEntries{hashes: make(map[string]int)}
		c.sessions[sessionID] = se
	}
	_, seen := se.hashes[hash]
	se.hashes[hash] = se.run
	if seen {
		return &msg.ForwardMsg{RefHash: hash}
	}
	m.RefHash = hash
	return m
}

// Fetch returns the cached payload for hash, for clients that received a
// reference to a message they no longer hold.
func (c *ForwardMsgCache) Fetch(ctx context.Context, hash string) ([]byte, bool, error) {
	return c.cache.Get(ctx, cacheKey(hash))
}

// OnRunFinished advances sessionID's run counter and forgets entries the
// client has not been sent for maxAge runs.
func (c *ForwardMsgCache) OnRunFinished(ctx context.Context, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	se, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	se.run++
	for hash, lastSent := range se.hashes {
		if se.run-lastSent > c.maxAge {
			delete(se.hashes, hash)
			c.dropIfUnreferencedLocked(ctx, hash)
		}
	}
}

// RemoveSession forgets all of sessionID's entries.
func (c *ForwardMsgCache) RemoveSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	se, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	delete(c.sessions, sessionID)
	for hash := range se.hashes {
		c.dropIfUnreferencedLocked(ctx, hash)
	}
}

func (c *ForwardMsgCache) dropIfUnreferencedLocked(ctx context.Context, hash string) {
	for _, se := range c.sessions {
		if _, ok := se.hashes[hash]; ok {
			return
		}
	}
	if err := c.cache.Delete(ctx, cacheKey(hash)); err != nil {
		c.log.Warn("forward message cache delete failed", "hash", hash, "error", err)
	}
}

func cacheKey(hash string) string { return "fwdmsg:" + hash }
