// Package cache provides a Redis-backed cache in front of the Ord content
// fetch, so repeated passes over the same block (notably reorg replay)
// avoid re-fetching inscription content from the Ord HTTP collaborator.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const contentKeyPrefix = "ordcontent:"

// defaultTTL bounds how long fetched content is retained; content is
// immutable once inscribed, but the TTL keeps the cache from growing
// unbounded over a long-running indexer process.
const defaultTTL = 72 * time.Hour

// ContentCache wraps a Redis client for inscription content lookups.
type ContentCache struct {
	rdb *redis.Client
}

// NewContentCache builds a ContentCache from a `redis://` URL.
func NewContentCache(redisURL string) (*ContentCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &ContentCache{rdb: redis.NewClient(opts)}, nil
}

// Get returns cached content for an inscription id, or ok=false on a miss.
func (c *ContentCache) Get(ctx context.Context, inscriptionID string) (content []byte, ok bool, err error) {
	data, err := c.rdb.Get(ctx, contentKeyPrefix+inscriptionID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores content for an inscription id.
func (c *ContentCache) Set(ctx context.Context, inscriptionID string, content []byte) error {
	return c.rdb.Set(ctx, contentKeyPrefix+inscriptionID, content, defaultTTL).Err()
}

// Close releases the underlying connection pool.
func (c *ContentCache) Close() error {
	return c.rdb.Close()
}
