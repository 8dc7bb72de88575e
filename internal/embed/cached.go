package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder wraps an Embedder with LRU caching so repeated texts,
// most commonly re-asked queries and re-indexed unchanged chunks, skip
// the model round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, Result]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU of the given size.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, Result](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}
}

// cacheKey derives the cache key from text and model. Keying on the model
// keeps entries valid across a model change.
func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns the cached result when available, otherwise computes and
// caches it. Errors are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (Result, error) {
	key := c.cacheKey(text)

	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return Result{}, err
	}

	c.cache.Add(key, res)
	return res, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the inner embedder's model identifier.
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
