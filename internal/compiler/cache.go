package compiler

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/born-ml/graphc/internal/graph"
	"github.com/born-ml/graphc/internal/metrics"
)

// Cache holds compiled kernels keyed by signature. It is safe for concurrent use:
// concurrent requests for one key build the kernel once and share the result.
type Cache struct {
	entries sync.Map // string -> graph.Kernel
	group   singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the kernel stored under key, building it with build on a miss. hit
// reports whether this call reused a kernel built elsewhere. Build errors are not
// cached.
func (c *Cache) Get(key string, build func() (graph.Kernel, error)) (k graph.Kernel, hit bool, err error) {
	if v, ok := c.entries.Load(key); ok {
		metrics.RecordCacheHit()
		return v.(graph.Kernel), true, nil
	}

	built := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		k, err := build()
		if err != nil {
			return nil, err
		}
		built = true
		c.entries.Store(key, k)
		return k, nil
	})
	if err != nil {
		return nil, false, err
	}
	if built {
		metrics.RecordCacheMiss()
	} else {
		metrics.RecordCacheHit()
	}
	return v.(graph.Kernel), !built, nil
}

// Len returns the number of cached kernels.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
