// Package cache memoizes expensive computations such as query embeddings.
// Values live in a bounded LRU; concurrent misses for one key share a
// single load.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoaderCache loads values on miss through a callback. Failed loads are not
// stored.
type LoaderCache[K comparable, V any] struct {
	lru   *lru.Cache[string, V]
	group singleflight.Group
	key   func(K) string
}

// NewLoaderCache returns a cache holding at most size entries. key maps a K
// to its string form for the LRU and singleflight groups.
func NewLoaderCache[K comparable, V any](size int, key func(K) string) (*LoaderCache[K, V], error) {
	l, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &LoaderCache[K, V]{lru: l, key: key}, nil
}

// Get returns the value for k, loading it on miss. hit reports whether the
// value was already cached.
func (c *LoaderCache[K, V]) Get(ctx context.Context, k K, load func(context.Context, K) (V, error)) (v V, hit bool, err error) {
	ks := c.key(k)
	if v, ok := c.lru.Get(ks); ok {
		return v, true, nil
	}
	res, err, _ := c.group.Do(ks, func() (any, error) {
		loaded, err := load(ctx, k)
		if err != nil {
			return nil, err
		}
		c.lru.Add(ks, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// Remove drops the entry for k.
func (c *LoaderCache[K, V]) Remove(k K) { c.lru.Remove(c.key(k)) }

// Purge drops all entries.
func (c *LoaderCache[K, V]) Purge() { c.lru.Purge() }

// Len returns the number of cached entries.
func (c *LoaderCache[K, V]) Len() int { return c.lru.Len() }
