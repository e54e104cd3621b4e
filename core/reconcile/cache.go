package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"merge-engine/core/repos"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a source node stays cached.
const DefaultCacheTTL = 5 * time.Minute

// cachedNode is a repository read kept for reuse. A nil node records that the
// path does not exist at the revision.
type cachedNode struct {
	node  *repos.Node
	built time.Time
	ttl   time.Duration
}

// IsExpired returns true if the entry has outlived its TTL.
func (c *cachedNode) IsExpired() bool {
	if c.ttl == 0 {
		return true // No caching
	}
	return time.Since(c.built) > c.ttl
}

// sourceCache holds source nodes keyed by path@rev.
// Cached nodes are shared and must not be modified.
type sourceCache struct {
	repo  repos.Repository
	ttl   time.Duration
	mu    sync.RWMutex
	nodes map[string]*cachedNode
	sf    singleflight.Group
}

func newSourceCache(repo repos.Repository, ttl time.Duration) *sourceCache {
	return &sourceCache{
		repo:  repo,
		ttl:   ttl,
		nodes: make(map[string]*cachedNode),
	}
}

// Read returns the node at p and rev, or nil if it does not exist.
// Uses singleflight so concurrent readers share one repository call.
func (c *sourceCache) Read(ctx context.Context, p string, rev int64) (*repos.Node, error) {
	key := fmt.Sprintf("%s@%d", p, rev)

	// Fast path
	c.mu.RLock()
	entry, exists := c.nodes[key]
	c.mu.RUnlock()

	if exists && !entry.IsExpired() {
		return entry.node, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		c.mu.RLock()
		entry, exists := c.nodes[key]
		c.mu.RUnlock()

		if exists && !entry.IsExpired() {
			return entry.node, nil
		}

		node, err := c.repo.Read(ctx, p, rev)
		if errors.Is(err, repos.ErrNotFound) {
			node, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}

		c.mu.Lock()
		c.nodes[key] = &cachedNode{node: node, built: time.Now(), ttl: c.ttl}
		c.mu.Unlock()

		return node, nil
	})

	if err != nil {
		return nil, err
	}

	return result.(*repos.Node), nil
}

// Invalidate drops every cached node.
func (c *sourceCache) Invalidate() {
	c.mu.Lock()
	c.nodes = make(map[string]*cachedNode)
	c.mu.Unlock()
}

// Len returns the number of cached reads.
func (c *sourceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}
