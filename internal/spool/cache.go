// Package spool implements C7, the representation spooler & cache
// (spec.md §4.7): a bounded in-memory cache of raw clipboard bytes
// awaiting materialization, backed by a byte-budgeted on-disk spool
// directory, fed through a bounded channel so backpressure is visible to
// the capture path rather than silently blocking it.
package spool

import (
	"sync"

	"go.klb.dev/uniclipboard/internal/ids"
)

// EntryStatus is the lifecycle of a cached representation's raw bytes.
type EntryStatus int

const (
	StatusPending EntryStatus = iota
	StatusProcessing
	StatusCompleted
)

type entry struct {
	bytes  []byte
	status EntryStatus
}

// Cache is a bounded in-memory store of representation bytes, grounded on
// the original implementation's RepresentationCache
// (representation_cache.rs): eviction prefers Completed entries over
// Pending/Processing ones, and within a class evicts in FIFO insertion
// order. Exclusively owned by a single mutex per spec.md §4.9's
// concurrency model.
type Cache struct {
	mu         sync.Mutex
	entries    map[ids.RepresentationId]*entry
	queue      []ids.RepresentationId
	maxEntries int
	maxBytes   int
	curBytes   int
}

// NewCache returns a Cache bounded by maxEntries and maxBytes.
func NewCache(maxEntries, maxBytes int) *Cache {
	return &Cache{
		entries:    make(map[ids.RepresentationId]*entry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

// Put inserts bytes for repID, replacing any prior entry, marks it
// Pending, and evicts as needed to stay within bounds.
func (c *Cache) Put(repID ids.RepresentationId, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(repID)
	c.scrubQueueLocked(repID)
	c.entries[repID] = &entry{bytes: bytes, status: StatusPending}
	c.queue = append(c.queue, repID)
	c.curBytes += len(bytes)
	c.evictIfNeededLocked()
}

// Get returns a copy of the cached bytes for repID, if still present.
func (c *Cache) Get(repID ids.RepresentationId) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[repID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(e.bytes))
	copy(out, e.bytes)
	return out, true
}

// MarkSpooling transitions repID to Processing (the spooler owns it).
func (c *Cache) MarkSpooling(repID ids.RepresentationId) {
	c.setStatus(repID, StatusProcessing)
}

// MarkPending reverts repID to Pending, e.g. after a failed disk write.
func (c *Cache) MarkPending(repID ids.RepresentationId) {
	c.setStatus(repID, StatusPending)
}

// MarkCompleted transitions repID to Completed, making it the preferred
// eviction candidate (its bytes are now durable on disk).
func (c *Cache) MarkCompleted(repID ids.RepresentationId) {
	c.setStatus(repID, StatusCompleted)
}

func (c *Cache) setStatus(repID ids.RepresentationId, status EntryStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[repID]; ok {
		e.status = status
	}
}

// Remove explicitly deletes repID from the cache.
func (c *Cache) Remove(repID ids.RepresentationId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(repID)
	c.compactQueueLocked()
}

func (c *Cache) removeLocked(repID ids.RepresentationId) {
	if e, ok := c.entries[repID]; ok {
		c.curBytes -= len(e.bytes)
		delete(c.entries, repID)
	}
}

func (c *Cache) scrubQueueLocked(repID ids.RepresentationId) {
	kept := c.queue[:0]
	for _, id := range c.queue {
		if id != repID {
			kept = append(kept, id)
		}
	}
	c.queue = kept
}

func (c *Cache) compactQueueLocked() {
	kept := c.queue[:0]
	for _, id := range c.queue {
		if _, ok := c.entries[id]; ok {
			kept = append(kept, id)
		}
	}
	c.queue = kept
}

func (c *Cache) evictIfNeededLocked() {
	for len(c.entries) > c.maxEntries || c.curBytes > c.maxBytes {
		if id, ok := c.popOldestByStatusLocked(StatusCompleted); ok {
			c.removeLocked(id)
			continue
		}
		if len(c.queue) == 0 {
			return
		}
		id := c.queue[0]
		c.queue = c.queue[1:]
		c.removeLocked(id)
	}
}

func (c *Cache) popOldestByStatusLocked(status EntryStatus) (ids.RepresentationId, bool) {
	for i, id := range c.queue {
		if e, ok := c.entries[id]; ok && e.status == status {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return id, true
		}
	}
	var zero ids.RepresentationId
	return zero, false
}
