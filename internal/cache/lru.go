package cache

import (
	"sync"
	"time"
)

// Entry is one cached response.
type Entry struct {
	Value     any       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int       `json:"hit_count"`
	Size      int       `json:"size"`
}

// lruCache is a doubly-linked-list LRU with per-entry TTL. An entry found
// expired at read time is treated as a miss and evicted on the spot.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*lruNode
	head     *lruNode
	tail     *lruNode

	hits      int64
	misses    int64
	evictions int64
	sizeBytes int64
}

type lruNode struct {
	key   string
	entry *Entry
	prev  *lruNode
	next  *lruNode
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*lruNode),
	}
}

func (c *lruCache) get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(node.entry.ExpiresAt) {
		c.unlink(node)
		delete(c.items, key)
		c.sizeBytes -= int64(node.entry.Size)
		c.evictions++
		c.misses++
		return nil, false
	}

	c.moveToHead(node)
	node.entry.HitCount++
	c.hits++
	return node.entry, true
}

func (c *lruCache) set(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.sizeBytes += int64(entry.Size) - int64(node.entry.Size)
		node.entry = entry
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode{key: key, entry: entry}
	c.items[key] = node
	c.addToHead(node)
	c.sizeBytes += int64(entry.Size)
}

func (c *lruCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if node, ok := c.items[key]; ok {
		c.unlink(node)
		delete(c.items, key)
		c.sizeBytes -= int64(node.entry.Size)
	}
}

func (c *lruCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*lruNode)
	c.head = nil
	c.tail = nil
	c.sizeBytes = 0
}

// sweep removes every expired entry, returning how many went.
func (c *lruCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, node := range c.items {
		if now.After(node.entry.ExpiresAt) {
			c.unlink(node)
			delete(c.items, key)
			c.sizeBytes -= int64(node.entry.Size)
			c.evictions++
			removed++
		}
	}
	return removed
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache) addToHead(node *lruNode) {
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

func (c *lruCache) unlink(node *lruNode) {
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
}

func (c *lruCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.addToHead(node)
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.sizeBytes -= int64(c.tail.entry.Size)
	c.unlink(c.tail)
	c.evictions++
}
