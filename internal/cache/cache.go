// Package cache provides the relay's response cache: a small LRU with
// per-entry TTL, keyed by request URL. Mutations invalidate eagerly so
// a stale read never outlives the write that made it stale.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries bounds the number of cached responses.
	DefaultMaxEntries = 50
	// DefaultTTL is how long a cached response stays servable.
	DefaultTTL = 24 * time.Hour
)

// Response is one cached upstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// ResponseCache is an LRU of upstream responses with TTL expiry.
type ResponseCache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	entries map[string]*list.Element
	order   *list.List
}

type entry struct {
	key     string
	resp    Response
	expires time.Time
}

func New(max int, ttl time.Duration) *ResponseCache {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		max:     max,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached response for key, if present and unexpired.
func (c *ResponseCache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.entries[key]
	if !found {
		return Response{}, false
	}
	e := elem.Value.(*entry)
	if time.Now().After(e.expires) {
		c.evict(elem)
		return Response{}, false
	}
	c.order.MoveToFront(elem)
	return e.resp, true
}

// Put stores a response under key, evicting the least recently used
// entry when over capacity.
func (c *ResponseCache) Put(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{key: key, resp: resp, expires: time.Now().Add(c.ttl)}
	if elem, found := c.entries[key]; found {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.entries[key] = c.order.PushFront(e)
	if c.order.Len() > c.max {
		if oldest := c.order.Back(); oldest != nil {
			c.evict(oldest)
		}
	}
}

// Invalidate drops every cached entry. Called after a mutation, since
// any collection may have changed.
func (c *ResponseCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Sweep removes expired entries and reports how many were dropped.
func (c *ResponseCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var stale []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expires) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		c.evict(elem)
	}
	return len(stale)
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) evict(elem *list.Element) {
	delete(c.entries, elem.Value.(*entry).key)
	c.order.Remove(elem)
}
