package broker

import (
	"container/list"
	"sync"
	"time"

	"coach-backend/internal/contract"
)

type cacheEntry struct {
	key      string
	response contract.Response
	storedAt time.Time
}

// responseCache is a bounded map with a TTL. When full it drops the entry that was
// inserted first; reads do not change the order.
type responseCache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element
}

func newResponseCache(max int, ttl time.Duration) *responseCache {
	return &responseCache{
		max:     max,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *responseCache) Get(key string, now time.Time) (contract.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return contract.Response{}, false
	}
	entry := el.Value.(*cacheEntry)
	if now.Sub(entry.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return contract.Response{}, false
	}
	return entry.response, true
}

func (c *responseCache) Set(key string, resp contract.Response, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.response = resp
		entry.storedAt = now
		return
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, response: resp, storedAt: now})
	for c.order.Len() > c.max {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *responseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *responseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}
