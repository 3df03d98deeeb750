// Package cache provides the caches of the query pipeline: a bounded LRU
// store, the compiled-query cache keyed by query shape and the command cache
// keyed by parameter shape.
package cache

import (
	"sync"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// LRU is a bounded least-recently-used map safe for concurrent use
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	data    map[K]*lruNode[K, V]
	maxSize int
	head    *lruNode[K, V]
	tail    *lruNode[K, V]
	stats   Stats
}

// lruNode represents a node in the doubly-linked list for LRU
type lruNode[K comparable, V any] struct {
	key   K
	value V
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

// NewLRU creates an LRU holding at most maxSize entries. A non-positive size
// means unbounded.
func NewLRU[K comparable, V any](maxSize int) *LRU[K, V] {
	return &LRU[K, V]{
		data:    make(map[K]*lruNode[K, V]),
		maxSize: maxSize,
		stats:   Stats{MaxSize: maxSize},
	}
}

// Get retrieves a value and marks it most recently used
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.moveToFront(node)
	c.stats.Hits++
	return node.value, true
}

// Set stores a value, evicting the least recently used entry when full
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, exists := c.data[key]; exists {
		node.value = value
		c.moveToFront(node)
		return
	}
	if c.maxSize > 0 && len(c.data) >= c.maxSize {
		c.evictLRU()
	}
	node := &lruNode[K, V]{key: key, value: value}
	c.addToFront(node)
	c.data[key] = node
}

// Invalidate removes a key
func (c *LRU[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.data[key]; ok {
		c.removeNode(node)
	}
}

// Clear removes all entries and resets statistics
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[K]*lruNode[K, V])
	c.head = nil
	c.tail = nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// Len returns the number of entries
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Stats returns cache statistics
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.data)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

func (c *LRU[K, V]) addToFront(node *lruNode[K, V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *LRU[K, V]) moveToFront(node *lruNode[K, V]) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.addToFront(node)
}

func (c *LRU[K, V]) unlink(node *lruNode[K, V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

func (c *LRU[K, V]) removeNode(node *lruNode[K, V]) {
	c.unlink(node)
	delete(c.data, node.key)
}

// evictLRU evicts the least recently used node
func (c *LRU[K, V]) evictLRU() {
	if c.tail == nil {
		return
	}
	c.removeNode(c.tail)
	c.stats.Evictions++
}
