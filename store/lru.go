package store

import (
	"container/list"
	"sync"
)

// lruCache keeps entries in access order; the front of list is the least
// recently used.
type lruCache struct {
	mu        sync.Mutex
	list      *list.List
	items     map[string]*list.Element
	maxBytes  int64
	usedBytes int64
	onEvicted func(key string, value Value)
}

type lruEntry struct {
	key   string
	value Value
}

func newLRUCache(options Options) *lruCache {
	return &lruCache{
		list:      list.New(),
		items:     make(map[string]*list.Element),
		maxBytes:  options.MaxBytes,
		onEvicted: options.OnEvicted,
	}
}

// Get returns the value and marks it most recently used.
func (c *lruCache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.list.MoveToBack(elem)
	return elem.Value.(*lruEntry).value, true
}

// Set stores value, handing any value it replaces to onEvicted.
func (c *lruCache) Set(key string, value Value) error {
	if value == nil {
		c.Delete(key)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		old := entry.value
		c.usedBytes += int64(value.Len() - old.Len())
		entry.value = value
		c.list.MoveToBack(elem)
		if c.onEvicted != nil {
			c.onEvicted(key, old)
		}
	} else {
		elem := c.list.PushBack(&lruEntry{key, value})
		c.items[key] = elem
		c.usedBytes += int64(value.Len() + len(key))
	}
	c.evict()
	return nil
}

func (c *lruCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

func (c *lruCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.removeOldest() {
	}
}

func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

func (c *lruCache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

// evict enforces maxBytes, oldest first. The newest entry is evicted too when
// it alone exceeds the limit.
func (c *lruCache) evict() {
	if c.maxBytes <= 0 {
		return
	}
	for c.usedBytes > c.maxBytes {
		if !c.removeOldest() {
			break
		}
	}
}

// removeElement deletes a list element and triggers onEvicted.
func (c *lruCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*lruEntry)
	delete(c.items, entry.key)
	c.list.Remove(elem)
	c.usedBytes -= int64(entry.value.Len() + len(entry.key))
	if c.onEvicted != nil {
		c.onEvicted(entry.key, entry.value)
	}
}

func (c *lruCache) removeOldest() bool {
	elem := c.list.Front()
	if elem == nil {
		return false
	}
	c.removeElement(elem)
	return true
}

func (c *lruCache) Close() {
	c.Clear()
}
