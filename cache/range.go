// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
)

// rangeState tracks how far a range cache has gotten in loading.
type rangeState int

const (
	rangeEmpty rangeState = iota
	rangePopulating
	rangePopulated
)

func (s rangeState) String() string {
	switch s {
	case rangeEmpty:
		return "empty"
	case rangePopulating:
		return "populating"
	case rangePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// pendingOp is an add or remove that arrived before the range cache
// finished loading.  The queue holds its own reference on the record.
type pendingOp struct {
	add    bool
	record *record
}

// rangeCache holds the visible events of one entity over one range.
//
// A range cache is registered with its entity cache before its
// initial load, so updates that arrive during the load are queued
// and replayed once populate runs, in arrival order.  After that,
// updates apply directly.  Handles whose record has moved out of the
// range are dropped the next time events are read.
type rangeCache struct {
	key      schedule.Key
	entity   int64
	from     time.Time
	to       time.Time
	registry *registry

	// owner is the entity cache this is registered with.  It is
	// set once by register and not changed after that.
	owner *entityCache

	lock    sync.Mutex
	state   rangeState
	handles map[int64]*handle
	pending []pendingOp
	modHash int64
	closed  bool
}

func newRangeCache(entity int64, r schedule.Range, reg *registry) *rangeCache {
	return &rangeCache{
		key:      schedule.NewKey(entity, r),
		entity:   entity,
		from:     r.From,
		to:       r.To,
		registry: reg,
	}
}

// Key returns the outer cache key of this range cache.
func (rc *rangeCache) Key() schedule.Key {
	return rc.key
}

// beginPopulate notes that the initial load has started.
func (rc *rangeCache) beginPopulate() {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	if rc.state == rangeEmpty {
		rc.state = rangePopulating
	}
}

// populate installs the initial set of records, keeping those that
// belong to this range, then replays every queued operation.  The
// caller passes one reference per record, which this takes over.
func (rc *rangeCache) populate(records []*record) {
	rc.lock.Lock()
	defer rc.lock.Unlock()

	if rc.closed {
		for _, rec := range records {
			rc.registry.release(rec)
		}
		return
	}

	rc.handles = make(map[int64]*handle, len(records))
	for _, rec := range records {
		rc.putHandle(rec)
	}
	rc.state = rangePopulated
	rc.modHash++

	pending := rc.pending
	rc.pending = nil
	for _, op := range pending {
		if op.add {
			rc.putHandle(op.record)
			rc.modHash++
		} else {
			if rc.dropHandle(op.record.id) {
				rc.modHash++
			}
			rc.registry.release(op.record)
		}
	}
}

// addIfIntersects shows a record in this range if it overlaps it.
// Before the range is populated every add is queued, since the record
// pins the newest snapshot the load might otherwise miss; populate
// filters them.  The caller keeps its own reference.
func (rc *rangeCache) addIfIntersects(rec *record) {
	rc.lock.Lock()
	defer rc.lock.Unlock()

	if rc.closed {
		return
	}
	if rc.state != rangePopulated {
		rc.registry.retain(rec)
		rc.pending = append(rc.pending, pendingOp{add: true, record: rec})
		return
	}
	if !rec.intersects(rc.from, rc.to) {
		return
	}
	rc.registry.retain(rec)
	rc.putHandle(rec)
	rc.modHash++
}

// removeIfIntersects stops showing a record in this range if it
// overlaps it.  As with adds, removes are queued unconditionally
// until the range is populated.
func (rc *rangeCache) removeIfIntersects(rec *record) {
	rc.lock.Lock()
	populated := rc.state == rangePopulated
	rc.lock.Unlock()
	if populated && !rec.intersects(rc.from, rc.to) {
		return
	}
	rc.remove(rec)
}

// remove stops showing a record in this range regardless of its
// times.  This is used when an event moves to a different entity.
func (rc *rangeCache) remove(rec *record) {
	rc.lock.Lock()
	defer rc.lock.Unlock()

	if rc.closed {
		return
	}
	if rc.state != rangePopulated {
		rc.registry.retain(rec)
		rc.pending = append(rc.pending, pendingOp{add: false, record: rec})
		return
	}
	if rc.dropHandle(rec.id) {
		rc.modHash++
	}
}

// putHandle installs a handle for a record if it belongs here,
// replacing any existing handle for the same event.  The reference
// passed in is consumed either way.  Must be called with the lock
// held.
func (rc *rangeCache) putHandle(rec *record) {
	h := newHandle(rec, rc.entity, rc.from, rc.to)
	if h == nil {
		rc.registry.release(rec)
		return
	}
	if old, present := rc.handles[rec.id]; present {
		rc.registry.release(old.record)
	}
	rc.handles[rec.id] = h
}

// dropHandle removes the handle for an event ID, returning true if
// there was one.  Must be called with the lock held.
func (rc *rangeCache) dropHandle(id int64) bool {
	h, present := rc.handles[id]
	if !present {
		return false
	}
	delete(rc.handles, id)
	if !rc.closed {
		rc.registry.release(h.record)
	}
	return true
}

// resolve validates every handle, dropping stale ones, and returns the
// surviving events sorted by start time and then ID.  Must be called
// with the lock held.
func (rc *rangeCache) resolve() []schedule.Event {
	events := make([]schedule.Event, 0, len(rc.handles))
	for id, h := range rc.handles {
		event, ok := h.resolve(rc.entity, rc.from, rc.to)
		if !ok {
			rc.dropHandle(id)
			rc.modHash++
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// events returns the events currently visible in this range.  The
// slice is newly allocated on every call.
func (rc *rangeCache) events() []schedule.Event {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	return rc.resolve()
}

// currentModHash returns the modification counter, after applying any
// pending stale-handle drops.
func (rc *rangeCache) currentModHash() int64 {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	rc.resolve()
	return rc.modHash
}

// snapshot returns the visible events and the modification counter
// that goes with them.
func (rc *rangeCache) snapshot() ([]schedule.Event, int64) {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	events := rc.resolve()
	return events, rc.modHash
}

// close detaches a range cache that has left the outer cache.  It
// releases every record reference.  Callers already holding the
// range cache can still read it, but it receives no more updates.
func (rc *rangeCache) close() {
	rc.lock.Lock()
	defer rc.lock.Unlock()

	if rc.closed {
		return
	}
	rc.closed = true
	for _, h := range rc.handles {
		rc.registry.release(h.record)
	}
	for _, op := range rc.pending {
		rc.registry.release(op.record)
	}
	rc.pending = nil
}
