// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"sync"

	"github.com/diffeo/go-schedcache/schedule"
)

// entityCache groups the range caches of one entity, so that an
// event update can reach every range it might appear in.
type entityCache struct {
	id     int64
	lock   sync.RWMutex
	ranges map[schedule.Key]*rangeCache
}

func newEntityCache(id int64) *entityCache {
	return &entityCache{
		id:     id,
		ranges: make(map[schedule.Key]*rangeCache),
	}
}

// register adds a range cache to this entity.  A previously
// registered range cache with the same key is displaced.
func (ec *entityCache) register(rc *rangeCache) {
	ec.lock.Lock()
	defer ec.lock.Unlock()
	rc.owner = ec
	ec.ranges[rc.key] = rc
}

// unregister removes a range cache, if it is still the one registered
// under its key.  Returns true if the entity has no range caches left.
func (ec *entityCache) unregister(rc *rangeCache) bool {
	ec.lock.Lock()
	defer ec.lock.Unlock()
	if ec.ranges[rc.key] == rc {
		delete(ec.ranges, rc.key)
	}
	return len(ec.ranges) == 0
}

// members returns a point-in-time copy of the registered range
// caches.
func (ec *entityCache) members() []*rangeCache {
	ec.lock.RLock()
	defer ec.lock.RUnlock()
	result := make([]*rangeCache, 0, len(ec.ranges))
	for _, rc := range ec.ranges {
		result = append(result, rc)
	}
	return result
}

// dispatchAdd offers a record to every range cache of this entity.
func (ec *entityCache) dispatchAdd(rec *record) {
	for _, rc := range ec.members() {
		rc.addIfIntersects(rec)
	}
}

// dispatchRemove withdraws a record from every range cache of this
// entity it overlaps.
func (ec *entityCache) dispatchRemove(rec *record) {
	for _, rc := range ec.members() {
		rc.removeIfIntersects(rec)
	}
}

// dispatchDrop withdraws a record from every range cache of this
// entity, whatever its times.
func (ec *entityCache) dispatchDrop(rec *record) {
	for _, rc := range ec.members() {
		rc.remove(rec)
	}
}
