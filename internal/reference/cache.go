package reference

import (
	"container/list"
	"sync"
)

// LRUCache is a thread-safe LRU cache. Every entry carries a tag; all
// entries sharing a tag are evicted together.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[string]*list.Element
	tags     map[string]map[string]struct{}
	order    *list.List
}

type cacheEntry struct {
	key   string
	tag   string
	value interface{}
}

// NewLRUCache creates a new LRU cache with the given capacity.
func NewLRUCache(capacity int) *LRUCache {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		tags:     make(map[string]map[string]struct{}),
		order:    list.New(),
	}
}

// Get returns the cached value for key and whether it was present.
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).value, true
}

// Put stores value under key, evicting the least recently used entry if full.
func (c *LRUCache) Put(key, tag string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.cache[key]; exists {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		c.untag(entry)
		entry.tag = tag
		entry.value = value
		c.tag(entry)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}

	entry := &cacheEntry{key: key, tag: tag, value: value}
	c.cache[key] = c.order.PushFront(entry)
	c.tag(entry)
}

// InvalidateTag removes every entry stored under tag.
func (c *LRUCache) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.tags[tag]
	n := len(keys)
	for key := range keys {
		if elem, ok := c.cache[key]; ok {
			c.remove(elem)
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries from the cache.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*list.Element)
	c.tags = make(map[string]map[string]struct{})
	c.order = list.New()
}

func (c *LRUCache) remove(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.cache, entry.key)
	c.untag(entry)
	c.order.Remove(elem)
}

func (c *LRUCache) tag(entry *cacheEntry) {
	keys, ok := c.tags[entry.tag]
	if !ok {
		keys = make(map[string]struct{})
		c.tags[entry.tag] = keys
	}
	keys[entry.key] = struct{}{}
}

func (c *LRUCache) untag(entry *cacheEntry) {
	keys := c.tags[entry.tag]
	delete(keys, entry.key)
	if len(keys) == 0 {
		delete(c.tags, entry.tag)
	}
}
