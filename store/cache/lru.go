package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/hrygo/mintmaths/store"
)

// lru is a capacity-bounded LRU of documents with per-entry TTL.
type lru struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	items map[string]*entry
	order *list.List // front is most recently used
}

type entry struct {
	doc       *store.Document
	expiresAt time.Time
	element   *list.Element
}

func newLRU(capacity int, ttl time.Duration, now func() time.Time) *lru {
	return &lru{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		items:    make(map[string]*entry),
		order:    list.New(),
	}
}

// get returns the live document for key and marks it recently used.
func (c *lru) get(key string) (*store.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.removeEntry(e)
		return nil, false
	}
	c.order.MoveToFront(e.element)
	return e.doc, true
}

// add stores doc unless a live entry for its key exists, and returns the
// entry that is cached afterwards. Entries are never overwritten.
func (c *lru) add(doc *store.Document) *store.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[doc.Key]; ok {
		if !c.now().After(e.expiresAt) {
			c.order.MoveToFront(e.element)
			return e.doc
		}
		c.removeEntry(e)
	}

	for len(c.items) >= c.capacity {
		c.evictOldest()
	}

	e := &entry{doc: doc, expiresAt: c.now().Add(c.ttl)}
	e.element = c.order.PushFront(e)
	c.items[doc.Key] = e
	return doc
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// cleanupExpired removes expired entries and returns how many were removed.
func (c *lru) cleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry); now.After(e.expiresAt) {
			c.removeEntry(e)
			removed++
		}
		el = prev
	}
	return removed
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *lru) evictOldest() {
	if oldest := c.order.Back(); oldest != nil {
		c.removeEntry(oldest.Value.(*entry))
	}
}

// removeEntry must be called with lock held.
func (c *lru) removeEntry(e *entry) {
	c.order.Remove(e.element)
	delete(c.items, e.doc.Key)
}
