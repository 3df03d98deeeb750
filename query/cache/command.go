package cache

import (
	"sync"

	"github.com/satishbabariya/relquery/query/params"
)

// Commands caches the commands generated for one compiled query, keyed by
// the shape of the parameter values they were generated for.
//
// Every shape hashes to the same bucket, so a lookup is a linear scan that
// compares shapes for equality. The number of distinct shapes per query is
// small and the scan stays cheaper than hashing a shape on every execution.
// Callers must only add commands whose generation did not depend on the
// values themselves.
type Commands[V any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]commandEntry[V]
}

type commandEntry[V any] struct {
	shape params.Shape
	value V
}

// NewCommands creates an empty command cache
func NewCommands[V any]() *Commands[V] {
	return &Commands[V]{buckets: make(map[uint64][]commandEntry[V])}
}

func shapeHash(params.Shape) uint64 {
	return 0
}

// Get returns the command generated for values of the given shape
func (c *Commands[V]) Get(shape params.Shape) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.find(shape)
}

func (c *Commands[V]) find(shape params.Shape) (V, bool) {
	for _, e := range c.buckets[shapeHash(shape)] {
		if e.shape.Equal(shape) {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

// Add stores value for shape unless an entry already exists, and returns the
// entry that ends up cached.
func (c *Commands[V]) Add(shape params.Shape, value V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.find(shape); ok {
		return existing
	}
	h := shapeHash(shape)
	c.buckets[h] = append(c.buckets[h], commandEntry[V]{shape: shape, value: value})
	return value
}

// Len returns the number of cached shapes
func (c *Commands[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, b := range c.buckets {
		n += len(b)
	}
	return n
}
