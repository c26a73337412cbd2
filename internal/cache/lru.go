package cache

import (
	"sync"
	"time"
)

// LRU is a fixed-capacity cache with per-entry TTL. Recency is tracked by
// threading the entries through an intrusive doubly linked list, warmest at
// the head. Hit/miss accounting is left to callers so metric labels stay at
// the call site.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	nowFn   func() time.Time

	entries    map[K]*lruEntry[K, V]
	head, tail *lruEntry[K, V]
}

type lruEntry[K comparable, V any] struct {
	key        K
	value      V
	storedAt   time.Time
	prev, next *lruEntry[K, V]
}

// NewLRU creates an LRU cache with the given capacity and TTL.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	return &LRU[K, V]{
		maxSize: capacity,
		ttl:     ttl,
		nowFn:   time.Now,
		entries: make(map[K]*lruEntry[K, V], capacity),
	}
}

// Get returns the cached value and true when the key is present and its TTL
// has not lapsed. An expired entry is reclaimed on access.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.nowFn().Sub(e.storedAt) > c.ttl {
		c.unlink(e)
		delete(c.entries, key)
		return zero, false
	}

	c.moveToHead(e)
	return e.value, true
}

// Put inserts or refreshes an entry, evicting from the cold end when the
// cache is full. A refresh also restarts the entry's TTL.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.storedAt = c.nowFn()
		c.moveToHead(e)
		return
	}

	for len(c.entries) >= c.maxSize && c.tail != nil {
		cold := c.tail
		c.unlink(cold)
		delete(c.entries, cold.key)
	}

	e := &lruEntry[K, V]{key: key, value: value, storedAt: c.nowFn()}
	c.entries[key] = e
	c.pushHead(e)
}

// Len reports the entry count, counting expired entries not yet reclaimed.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRU[K, V]) pushHead(e *lruEntry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU[K, V]) moveToHead(e *lruEntry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushHead(e)
}

func (c *LRU[K, V]) unlink(e *lruEntry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
