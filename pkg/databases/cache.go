package databases

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/benekli/minerva/pkg/observability"
)

// CachingStore wraps a Store with a TTL-bounded LRU over query results.
// Every mutation bumps a per-collection generation counter that is part of
// the cache key, so entries written before the mutation can never be served
// afterwards.
type CachingStore struct {
	inner Store
	cache *expirable.LRU[string, []SearchResult]

	mu          sync.Mutex
	generations map[string]uint64
}

// NewCachingStore wraps inner with a query cache of the given size and TTL.
func NewCachingStore(inner Store, size int, ttl time.Duration) *CachingStore {
	if size <= 0 {
		size = 1000
	}
	return &CachingStore{
		inner:       inner,
		cache:       expirable.NewLRU[string, []SearchResult](size, nil, ttl),
		generations: make(map[string]uint64),
	}
}

func (c *CachingStore) generation(collection string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[collection]
}

func (c *CachingStore) bumpGeneration(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[collection]++
}

// cacheKey hashes the full query identity: collection, generation, vector
// bytes, topK, and the filter in sorted-key order.
func (c *CachingStore) cacheKey(collection string, vector []float32, topK int, filter map[string]interface{}) string {
	h := sha256.New()

	_, _ = h.Write([]byte(collection))
	_ = binary.Write(h, binary.LittleEndian, c.generation(collection))

	for _, v := range vector {
		_ = binary.Write(h, binary.LittleEndian, math.Float32bits(v))
	}
	_ = binary.Write(h, binary.LittleEndian, int64(topK))

	if len(filter) > 0 {
		keys := make([]string, 0, len(filter))
		for k := range filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%v;", k, filter[k])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// AddChunks writes through to the inner store and invalidates the
// collection's cached queries.
func (c *CachingStore) AddChunks(ctx context.Context, collection string, records []Record) error {
	if err := c.inner.AddChunks(ctx, collection, records); err != nil {
		return err
	}
	c.bumpGeneration(collection)
	return nil
}

// Query serves from cache when a fresh entry exists, otherwise queries the
// inner store and caches the result.
func (c *CachingStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error) {
	key := c.cacheKey(collection, vector, topK, filter)

	if results, ok := c.cache.Get(key); ok {
		recordCacheAccess(ctx, true)
		return results, nil
	}
	recordCacheAccess(ctx, false)

	results, err := c.inner.Query(ctx, collection, vector, topK, filter)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, results)
	return results, nil
}

// DeleteByFilter writes through and invalidates the collection.
func (c *CachingStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	if err := c.inner.DeleteByFilter(ctx, collection, filter); err != nil {
		return err
	}
	c.bumpGeneration(collection)
	return nil
}

// DeleteCollection writes through and invalidates the collection.
func (c *CachingStore) DeleteCollection(ctx context.Context, collection string) error {
	if err := c.inner.DeleteCollection(ctx, collection); err != nil {
		return err
	}
	c.bumpGeneration(collection)
	return nil
}

// Close closes the inner store.
func (c *CachingStore) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

func recordCacheAccess(ctx context.Context, hit bool) {
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordCacheAccess(ctx, "vector_query", hit)
	}
}

var _ Store = (*CachingStore)(nil)
