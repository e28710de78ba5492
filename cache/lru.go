// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU cache with an optional maximum
// age.  It stands in for the weak references a garbage-collected
// runtime with weak maps would use: unused ranges are forgotten once
// the cache fills up or once they get too old, and the owner gets a
// callback so it can detach the forgotten item from everything else
// that knows about it.

import (
	"container/list"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-schedcache/schedule"
)

// keyed describes things with cache keys, like range caches.
type keyed interface {
	Key() schedule.Key
}

type lruEntry struct {
	item  keyed
	added time.Time
}

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.  onEvict, if
// non-nil, is called for every item that leaves the cache for any
// reason; it is never called with the cache lock held.
type lru struct {
	size      int
	maxAge    time.Duration
	clock     clock.Clock
	onEvict   func(keyed)
	lock      sync.RWMutex
	evictList *list.List
	index     map[schedule.Key]*list.Element
}

func newLRU(size int, maxAge time.Duration, clk clock.Clock, onEvict func(keyed)) *lru {
	if clk == nil {
		clk = clock.New()
	}
	return &lru{
		size:      size,
		maxAge:    maxAge,
		clock:     clk,
		onEvict:   onEvict,
		evictList: list.New(),
		index:     make(map[schedule.Key]*list.Element),
	}
}

// expired determines whether an entry is past its maximum age.  This
// must be called with at least the read lock held.
func (lru *lru) expired(entry *lruEntry, now time.Time) bool {
	return lru.maxAge > 0 && !now.Before(entry.added.Add(lru.maxAge))
}

// Get retrieves an item from the cache, marking it as most recently
// used.  If it is not present, or it is too old, returns nil.
func (lru *lru) Get(key schedule.Key) keyed {
	var evicted []keyed
	defer func() { lru.evicted(evicted) }()

	// This sadly happens under a writer lock, since we need to move
	// the item to the front of the list if it is present
	lru.lock.Lock()
	defer lru.lock.Unlock()

	element, present := lru.index[key]
	if !present {
		return nil
	}
	entry := element.Value.(*lruEntry)
	if lru.expired(entry, lru.clock.Now()) {
		lru.remove(element)
		evicted = append(evicted, entry.item)
		return nil
	}
	lru.evictList.MoveToBack(element)
	return entry.item
}

// Peek looks for an item in the cache and returns it if present, or
// returns nil if absent or too old.  This runs under a reader lock,
// and so can run concurrently with itself but not calls to Put or
// Get.  This does not affect the recency of the item.
func (lru *lru) Peek(key schedule.Key) keyed {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[key]; present {
		entry := element.Value.(*lruEntry)
		if !lru.expired(entry, lru.clock.Now()) {
			return entry.item
		}
	}
	return nil
}

// Put adds an item to the LRU cache, possibly evicting something.
// If a different item with the same key was already present, it is
// replaced and evicted.
func (lru *lru) Put(item keyed) {
	var evicted []keyed
	defer func() { lru.evicted(evicted) }()

	lru.lock.Lock()
	defer lru.lock.Unlock()

	entry := &lruEntry{item: item, added: lru.clock.Now()}

	// Are we just updating an existing item?
	if element, present := lru.index[item.Key()]; present {
		old := element.Value.(*lruEntry)
		if old.item != item {
			evicted = append(evicted, old.item)
		}
		element.Value = entry
		lru.evictList.MoveToBack(element)
		return
	}

	// Otherwise add it
	element := lru.evictList.PushBack(entry)
	lru.index[item.Key()] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		evicted = append(evicted, head.Value.(*lruEntry).item)
		lru.remove(head)
	}
}

// Expire removes every item that is past its maximum age, returning
// the number of items removed.
func (lru *lru) Expire() int {
	var evicted []keyed
	defer func() { lru.evicted(evicted) }()

	lru.lock.Lock()
	defer lru.lock.Unlock()

	if lru.maxAge <= 0 {
		return 0
	}
	now := lru.clock.Now()
	for element := lru.evictList.Front(); element != nil; {
		next := element.Next()
		entry := element.Value.(*lruEntry)
		if lru.expired(entry, now) {
			evicted = append(evicted, entry.item)
			lru.remove(element)
		}
		element = next
	}
	return len(evicted)
}

// Len returns the number of items in the cache, including any that
// are too old but have not been expired yet.
func (lru *lru) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}

// remove is an internal helper, running under the write lock, that
// drops an element from both the list and the index.
func (lru *lru) remove(element *list.Element) {
	entry := element.Value.(*lruEntry)
	delete(lru.index, entry.item.Key())
	lru.evictList.Remove(element)
}

// evicted runs the eviction callback outside the lock.
func (lru *lru) evicted(items []keyed) {
	if lru.onEvict == nil {
		return
	}
	for _, item := range items {
		lru.onEvict(item)
	}
}
