// Package embedcache is the shared embedding cache: (content hash, provider,
// model) -> vector. It is the one resource mutated by many concurrent
// requests, so misses coalesce through a single-flight group and successful
// results are inserted idempotently. Failures are never cached.
package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/seekwell/seekwell/internal/model"
	"github.com/seekwell/seekwell/internal/pkg/hashutil"
)

// Store is the durable cache backend. Put must be idempotent: a concurrent
// writer inserting the same key first makes the second insert a no-op.
type Store interface {
	Get(ctx context.Context, provider, modelName, contentHash string) ([]float32, bool, error)
	Put(ctx context.Context, entry *model.EmbeddingCacheEntry) error
}

// ComputeFunc is the outbound embedding computation invoked on a miss.
type ComputeFunc func(ctx context.Context) ([]float32, error)

type Cache struct {
	store Store
	lru   *expirable.LRU[string, []float32]
	group singleflight.Group
}

func New(store Store, lruSize int, lruTTL time.Duration) *Cache {
	c := &Cache{store: store}
	if lruSize > 0 && lruTTL > 0 {
		c.lru = expirable.NewLRU[string, []float32](lruSize, nil, lruTTL)
	}
	return c
}

// GetOrCompute returns the cached vector for (text, provider, model) or
// computes it. Concurrent misses on the same key share one computation: the
// compute function runs at most once per key at a time, and every waiter
// receives the same result or the same error. A failed computation leaves no
// entry behind, so the key is retryable on the next call.
func (c *Cache) GetOrCompute(ctx context.Context, text, provider, modelName string, compute ComputeFunc) ([]float32, error) {
	contentHash := hashutil.Digest(text)
	return c.getOrComputeByHash(ctx, contentHash, provider, modelName, compute)
}

// Digest exposes the cache key hash for callers that persist a reference to
// the stored vector instead of the payload.
func (c *Cache) Digest(text string) string {
	return hashutil.Digest(text)
}

func (c *Cache) getOrComputeByHash(ctx context.Context, contentHash, provider, modelName string, compute ComputeFunc) ([]float32, error) {
	key := provider + ":" + modelName + ":" + contentHash
	if c.lru != nil {
		if values, ok := c.lru.Get(key); ok {
			return cloneVector(values), nil
		}
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		if c.store != nil {
			values, ok, err := c.store.Get(ctx, provider, modelName, contentHash)
			if err != nil {
				return nil, err
			}
			if ok {
				logutil.GetLogger(ctx).Debug("embedding cache hit (db)",
					zap.String("provider", provider), zap.String("model", modelName))
				c.addLRU(key, values)
				return values, nil
			}
		}
		values, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if c.store != nil {
			if err := c.store.Put(ctx, &model.EmbeddingCacheEntry{
				Provider:    provider,
				ModelName:   modelName,
				ContentHash: contentHash,
				Embedding:   values,
				Ctime:       time.Now().Unix(),
			}); err != nil {
				logutil.GetLogger(ctx).Warn("failed to persist embedding cache entry", zap.Error(err))
			}
		}
		c.addLRU(key, values)
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneVector(result.([]float32)), nil
}

func (c *Cache) addLRU(key string, values []float32) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, cloneVector(values))
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
