// Package lru provides a size-bounded least-recently-used map.
//
// Lookups promote entries to the front of a doubly-linked list; inserts past
// the limit drop entries from the back. A Cache is not safe for concurrent
// use, which matches its callers: draw lists are built on one goroutine.
package lru

// node is an entry in the recency list. The head is the most recently used.
type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

// Stats reports cache effectiveness.
type Stats struct {
	Len       int
	Limit     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache maps keys to values, keeping at most Limit entries.
type Cache[K comparable, V any] struct {
	items      map[K]*node[K, V]
	head, tail *node[K, V]
	limit      int
	stats      Stats
}

// New creates a cache holding at most limit entries. A limit below one is
// treated as one.
func New[K comparable, V any](limit int) *Cache[K, V] {
	limit = max(limit, 1)
	return &Cache[K, V]{
		items: make(map[K]*node[K, V], limit),
		limit: limit,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	n, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	c.moveToFront(n)
	return n.value, true
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	if n, ok := c.items[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}
	n := &node[K, V]{key: key, value: value}
	c.items[key] = n
	c.pushFront(n)
	for len(c.items) > c.limit {
		c.evict()
	}
}

// GetOrPut returns the cached value for key, computing and storing it with
// fill on a miss.
func (c *Cache[K, V]) GetOrPut(key K, fill func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := fill()
	c.Put(key, v)
	return v
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	n, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(n)
	delete(c.items, key)
	return true
}

// Clear drops every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	clear(c.items)
	c.head, c.tail = nil, nil
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return len(c.items) }

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	s := c.stats
	s.Len = len(c.items)
	s.Limit = c.limit
	return s
}

func (c *Cache[K, V]) evict() {
	n := c.tail
	if n == nil {
		return
	}
	c.unlink(n)
	delete(c.items, n.key)
	c.stats.Evictions++
}

func (c *Cache[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *Cache[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
