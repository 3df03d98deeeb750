package cache

import (
	"golang.org/x/sync/singleflight"

	"github.com/satishbabariya/relquery/internal/debug"
	"github.com/satishbabariya/relquery/query/ast"
)

// DefaultCompiledSize bounds the compiled-query cache when no size is given
const DefaultCompiledSize = 1024

// Compiled caches compiled queries by the fingerprint of their tree.
// Entries are looked up by digest and confirmed against the full key text,
// so a digest collision is a miss, never a wrong program. Concurrent
// compiles of one key run once.
type Compiled[V any] struct {
	lru   *LRU[uint64, compiledEntry[V]]
	group singleflight.Group
}

type compiledEntry[V any] struct {
	text  string
	value V
}

// NewCompiled creates a compiled-query cache bounded to size entries
func NewCompiled[V any](size int) *Compiled[V] {
	if size == 0 {
		size = DefaultCompiledSize
	}
	return &Compiled[V]{lru: NewLRU[uint64, compiledEntry[V]](size)}
}

// Get returns the cached value for key
func (c *Compiled[V]) Get(key ast.Key) (V, bool) {
	e, ok := c.lru.Get(key.Digest)
	if !ok || e.text != key.Text {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrCompile returns the cached value for key, running compile on a miss.
// The boolean reports a cache hit. Failed compiles are not cached.
func (c *Compiled[V]) GetOrCompile(key ast.Key, compile func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compile()
		if err != nil {
			return nil, err
		}
		c.lru.Set(key.Digest, compiledEntry[V]{text: key.Text, value: v})
		debug.Debug("Compiled query cached", "key", key.String(), "size", c.lru.Len())
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// Stats returns the underlying LRU statistics
func (c *Compiled[V]) Stats() Stats {
	return c.lru.Stats()
}

// Clear drops every compiled query
func (c *Compiled[V]) Clear() {
	c.lru.Clear()
}
