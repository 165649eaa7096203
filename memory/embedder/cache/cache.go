// Package cache memoizes embeddings in a bounded ristretto cache.
//
// Selection embeds the same problem description once per category it
// searches, so repeated queries hit the cache instead of the model.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/expmem/memory"
)

// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 4096

// Config configures the cache.
type Config struct {
	// MaxEntries is the number of embeddings kept. Each entry costs 1.
	MaxEntries int64
}

// CachedEmbedder wraps another Embedder.
type CachedEmbedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*CachedEmbedder)(nil)

// New wraps inner with a cache.
func New(inner memory.Embedder, cfg Config) (*CachedEmbedder, error) {
	if inner == nil {
		return nil, errors.New("cache: inner embedder is required")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text or computes and stores it.
// Callers must not modify the returned slice.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, 1)
	return vec, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending writes are visible to Get.
func (e *CachedEmbedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache's background goroutines.
func (e *CachedEmbedder) Close() {
	e.cache.Close()
}
