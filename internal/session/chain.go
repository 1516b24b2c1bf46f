package session

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoChainSource is returned when the chain id is unknown and no fetch
// function was configured.
var ErrNoChainSource = errors.New("chain id unavailable")

// ChainFetchFunc retrieves the chain id from the network.
type ChainFetchFunc func(ctx context.Context) (string, error)

// ChainCache is a write-once chain id. Concurrent first lookups share a single
// fetch; failed fetches are not cached.
type ChainCache struct {
	fetch ChainFetchFunc
	group singleflight.Group

	mu sync.RWMutex
	id string
}

// NewChainCache creates a cache backed by fetch, which may be nil.
func NewChainCache(fetch ChainFetchFunc) *ChainCache {
	return &ChainCache{fetch: fetch}
}

// Seed sets the chain id if none is cached yet. It reports whether id was
// stored.
func (c *ChainCache) Seed(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != "" {
		return false
	}
	c.id = id
	return true
}

// Cached returns the cached id, if any.
func (c *ChainCache) Cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.id != ""
}

// Get returns the chain id, fetching it on first use. The shared fetch runs
// detached from any single caller's cancellation; ctx only bounds how long
// this caller waits.
func (c *ChainCache) Get(ctx context.Context) (string, error) {
	if id, ok := c.Cached(); ok {
		return id, nil
	}
	if c.fetch == nil {
		return "", ErrNoChainSource
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("chain_id", func() (any, error) {
		if id, ok := c.Cached(); ok {
			return id, nil
		}
		id, err := c.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", ErrNoChainSource
		}
		c.Seed(id)
		cached, _ := c.Cached()
		return cached, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
