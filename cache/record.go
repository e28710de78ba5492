// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
)

// record is the single canonical copy of one event, shared by every
// range cache that shows it.  The snapshot and its modification count
// change together under the record lock; modCount may additionally be
// read without the lock.
type record struct {
	id       int64
	lock     sync.Mutex
	event    schedule.Event
	modCount atomic.Uint64

	// refs counts the range handles, queued range operations, and
	// in-progress dispatches holding this record.  It is guarded by
	// the owning registry's lock, not the record lock.
	refs int
}

func newRecord(event schedule.Event) *record {
	return &record{id: event.ID, event: event}
}

// isNewer determines whether incoming is at least as new as held.
// The primary version decides if it differs.  Otherwise the secondary
// versions are compared in order, skipping any slot that is absent
// from either snapshot, and the first difference decides.  If nothing
// differs the incoming snapshot wins: a notification arrived, so
// something presumably happened.
func isNewer(incoming, held schedule.Event) bool {
	if incoming.Version != held.Version {
		return incoming.Version > held.Version
	}
	for key := schedule.VersionKey(0); key < schedule.NumVersionKeys; key++ {
		a, aOK := incoming.Versions.Get(key)
		b, bOK := held.Versions.Get(key)
		if !aOK || !bOK || a == b {
			continue
		}
		return a > b
	}
	return true
}

// update merges a newly observed snapshot into the record if it is as
// new or newer than the current one, returning true if it did.
func (r *record) update(event schedule.Event) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !isNewer(event, r.event) {
		return false
	}
	r.event = event
	r.modCount.Add(1)
	return true
}

// snapshot returns the current event snapshot.
func (r *record) snapshot() schedule.Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.event
}

// intersects determines whether the event overlaps [from, to).
func (r *record) intersects(from, to time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.event.Intersects(from, to)
}

// belongsTo determines whether the event is owned by entity and
// overlaps [from, to).
func (r *record) belongsTo(entity int64, from, to time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.event.Entity == entity && r.event.Intersects(from, to)
}

// check is belongsTo that also returns the snapshot and modification
// count it examined, all taken atomically.
func (r *record) check(entity int64, from, to time.Time) (schedule.Event, uint64, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	ok := r.event.Entity == entity && r.event.Intersects(from, to)
	return r.event, r.modCount.Load(), ok
}

// registry holds at most one live record per event ID.  A record
// stays registered exactly as long as something holds a reference to
// it; this is the explicit form of a weakly-keyed table.
type registry struct {
	lock    sync.Mutex
	records map[int64]*record
}

func newRegistry() *registry {
	return &registry{records: make(map[int64]*record)}
}

// acquire returns the record for event's ID with one more reference,
// creating it from event if there is none.  The boolean result is
// true if the record was created; if it is false the caller should
// merge event into the record itself.
func (reg *registry) acquire(event schedule.Event) (*record, bool) {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	rec, present := reg.records[event.ID]
	if !present {
		rec = newRecord(event)
		reg.records[event.ID] = rec
	}
	rec.refs++
	return rec, !present
}

// retain adds a reference to a record.  The caller must already hold
// a reference, so the record is known to be registered.
func (reg *registry) retain(rec *record) {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	rec.refs++
}

// release drops a reference to a record, forgetting it once nothing
// refers to it.
func (reg *registry) release(rec *record) {
	reg.lock.Lock()
	defer reg.lock.Unlock()

	rec.refs--
	if rec.refs <= 0 && reg.records[rec.id] == rec {
		delete(reg.records, rec.id)
	}
}

// Len returns the number of registered records.
func (reg *registry) Len() int {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	return len(reg.records)
}
