// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/stretchr/testify/assert"
)

type anItem struct {
	Entity int64
}

func (a anItem) Key() schedule.Key {
	return schedule.Key{Entity: a.Entity}
}

func keyOf(entity int64) schedule.Key {
	return anItem{Entity: entity}.Key()
}

type LRUAssertions struct {
	*assert.Assertions
	LRU     *lru
	Clock   *clock.Mock
	Evicted []int64
}

func NewLRUAssertions(t assert.TestingT, size int, maxAge time.Duration) *LRUAssertions {
	a := &LRUAssertions{
		Assertions: assert.New(t),
		Clock:      clock.NewMock(),
	}
	a.LRU = newLRU(size, maxAge, a.Clock, func(item keyed) {
		a.Evicted = append(a.Evicted, item.(anItem).Entity)
	})
	return a
}

// PutItem adds an item for an entity to the cache.
func (a *LRUAssertions) PutItem(entity int64) {
	a.LRU.Put(anItem{Entity: entity})
}

// GetItem fetches an item from the cache; if not present, it is
// added.
func (a *LRUAssertions) GetItem(entity int64) {
	item := a.LRU.Get(keyOf(entity))
	if item == nil {
		a.PutItem(entity)
		return
	}
	if a.IsType(anItem{}, item) {
		a.Equal(entity, item.(anItem).Entity)
	}
}

// LRUHas asserts that an item for an entity is in the cache.
func (a *LRUAssertions) LRUHas(entity int64) {
	item := a.LRU.Peek(keyOf(entity))
	if a.NotNil(item) {
		a.Equal(keyOf(entity), item.Key())
	}
}

// LRUDoesNotHave asserts that no item for an entity is in the cache.
func (a *LRUAssertions) LRUDoesNotHave(entity int64) {
	item := a.LRU.Peek(keyOf(entity))
	a.Nil(item)
}

// TestLRUSimple tests minimal object presence.
func TestLRUSimple(t *testing.T) {
	a := NewLRUAssertions(t, 2, 0)
	a.PutItem(1)

	a.LRUHas(1)
	a.LRUDoesNotHave(2)
	a.Nil(a.LRU.Get(keyOf(2)))
	a.Equal(1, a.LRU.Len())
}

// TestLRUEvict tests that adding past capacity evicts the oldest item.
func TestLRUEvict(t *testing.T) {
	a := NewLRUAssertions(t, 2, 0)

	a.GetItem(1)
	a.GetItem(2)
	a.LRUHas(1)
	a.LRUHas(2)

	// Add one more; since it is a third one, the oldest (1) should
	// be evicted
	a.GetItem(3)
	a.LRUDoesNotHave(1)
	a.LRUHas(2)
	a.LRUHas(3)
	a.Equal([]int64{1}, a.Evicted)
}

// TestLRUOrder tests that getting an item causes it to not get evicted.
func TestLRUOrder(t *testing.T) {
	a := NewLRUAssertions(t, 2, 0)

	a.GetItem(1)
	a.GetItem(2)

	// Do an *additional* get for 1, so it is more-recently-used
	a.GetItem(1)

	// Now when we add 3, 2 gets pushed out
	a.GetItem(3)
	a.LRUHas(1)
	a.LRUDoesNotHave(2)
	a.LRUHas(3)
	a.Equal([]int64{2}, a.Evicted)
}

// TestLRUPeekOrder tests that peeking does not affect recency.
func TestLRUPeekOrder(t *testing.T) {
	a := NewLRUAssertions(t, 2, 0)

	a.GetItem(1)
	a.GetItem(2)
	a.LRUHas(1)
	a.GetItem(3)
	a.LRUDoesNotHave(1)
}

// TestLRUReplace tests that putting an item with an existing key
// evicts only the displaced item.
func TestLRUReplace(t *testing.T) {
	a := NewLRUAssertions(t, 2, 0)

	a.PutItem(1)
	a.PutItem(1)
	a.Empty(a.Evicted, "re-putting the same item is not an eviction")

	type other struct{ anItem }
	a.LRU.Put(other{anItem{Entity: 1}})
	a.Equal([]int64{1}, a.Evicted)
	a.IsType(other{}, a.LRU.Peek(keyOf(1)))
	a.Equal(1, a.LRU.Len())
}

// TestLRURemoval does simple tests on the Remove call.
func TestLRURemoval(t *testing.T) {
	a := NewLRUAssertions(t, 2, 0)

	// Obvious thing #1:
	a.GetItem(1)
	a.LRUHas(1)
	a.LRU.Remove(keyOf(1))
	a.LRUDoesNotHave(1)
	a.Equal([]int64{1}, a.Evicted)

	// Obvious thing #2:
	a.LRU.Remove(keyOf(3))
	a.LRUDoesNotHave(3)

	// Also if we remove a more-recent thing, the
	// older-but-present thing shouldn't get evicted
	a.GetItem(1)
	a.GetItem(2)
	a.LRU.Remove(keyOf(2))
	a.GetItem(3)
	a.LRUHas(1)
	a.LRUDoesNotHave(2)
	a.LRUHas(3)
	a.Equal([]int64{1, 2}, a.Evicted)
}

// TestLRUMaxAge tests that items expire.
func TestLRUMaxAge(t *testing.T) {
	a := NewLRUAssertions(t, 10, time.Minute)

	a.PutItem(1)
	a.Clock.Add(30 * time.Second)
	a.PutItem(2)
	a.LRUHas(1)
	a.LRUHas(2)

	a.Clock.Add(30 * time.Second)
	a.LRUDoesNotHave(1)
	a.LRUHas(2)

	// Peek does not remove anything, Get does
	a.Equal(2, a.LRU.Len())
	a.Nil(a.LRU.Get(keyOf(1)))
	a.Equal(1, a.LRU.Len())
	a.Equal([]int64{1}, a.Evicted)
}

// TestLRUExpire tests explicit sweeping of old items.
func TestLRUExpire(t *testing.T) {
	a := NewLRUAssertions(t, 10, time.Minute)

	a.PutItem(1)
	a.PutItem(2)
	a.Clock.Add(30 * time.Second)
	a.PutItem(3)
	a.Equal(0, a.LRU.Expire())

	a.Clock.Add(45 * time.Second)
	a.Equal(2, a.LRU.Expire())
	a.ElementsMatch([]int64{1, 2}, a.Evicted)
	a.LRUHas(3)
	a.Equal(1, a.LRU.Len())
}

// TestLRUNoMaxAge tests that Expire does nothing without a maximum age.
func TestLRUNoMaxAge(t *testing.T) {
	a := NewLRUAssertions(t, 10, 0)
	a.PutItem(1)
	a.Clock.Add(24 * time.Hour)
	a.Equal(0, a.LRU.Expire())
	a.LRUHas(1)
}

// Remove takes an item out of the cache.  It does nothing if that
// key does not exist.
func (lru *lru) Remove(key schedule.Key) {
	var evicted []keyed
	defer func() { lru.evicted(evicted) }()

	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		evicted = append(evicted, element.Value.(*lruEntry).item)
		lru.remove(element)
	}
}
