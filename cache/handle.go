// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"time"

	"github.com/diffeo/go-schedcache/schedule"
)

// handle is one range cache's view of a record.  It remembers the
// snapshot and modification count it last validated, so that reading
// an unchanged record skips the range check.  A handle belongs to a
// single range cache and is only used under that cache's lock.
type handle struct {
	record   *record
	modCount uint64
	event    schedule.Event
}

// newHandle creates a handle on a record if the record belongs to the
// entity and range, or returns nil if not.
func newHandle(rec *record, entity int64, from, to time.Time) *handle {
	event, modCount, ok := rec.check(entity, from, to)
	if !ok {
		return nil
	}
	return &handle{record: rec, modCount: modCount, event: event}
}

// resolve returns the current snapshot of the record.  If the record
// has changed since the handle last looked and no longer belongs to
// the entity and range, returns false, and the handle should be
// discarded.
func (h *handle) resolve(entity int64, from, to time.Time) (schedule.Event, bool) {
	if h.record.modCount.Load() == h.modCount {
		return h.event, true
	}
	event, modCount, ok := h.record.check(entity, from, to)
	if !ok {
		return schedule.Event{}, false
	}
	h.event = event
	h.modCount = modCount
	return event, true
}
