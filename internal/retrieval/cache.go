package retrieval

import (
	"context"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cached memoizes another Service's results in memory.
type Cached struct {
	next  Service
	cache *gocache.Cache
}

// NewCached wraps next with a TTL cache.
func NewCached(next Service, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Retrieve serves repeated queries from the cache.
func (c *Cached) Retrieve(ctx context.Context, query string, topK int) Result {
	key := strconv.Itoa(topK) + "|" + strings.ToLower(strings.TrimSpace(query))
	if v, ok := c.cache.Get(key); ok {
		return v.(Result)
	}
	res := c.next.Retrieve(ctx, query, topK)
	c.cache.SetDefault(key, res)
	return res
}

// Len returns the number of cached queries.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
