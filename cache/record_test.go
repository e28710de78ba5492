// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"testing"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func at(hours float64) time.Time {
	return base.Add(time.Duration(hours * float64(time.Hour)))
}

func makeEvent(id, entity int64, from, to float64) schedule.Event {
	return schedule.Event{
		ID:       id,
		Entity:   entity,
		Start:    at(from),
		End:      at(to),
		Version:  1,
		Versions: schedule.NewVersions(1, 1, 1, 1, 1),
	}
}

func TestIsNewerPrimary(t *testing.T) {
	held := makeEvent(1, 42, 10, 11)
	incoming := held
	incoming.Version = 2
	incoming.Versions = schedule.NewVersions(0, 0, 0, 0, 0)
	assert.True(t, isNewer(incoming, held))
	assert.False(t, isNewer(held, incoming))
}

func TestIsNewerSecondary(t *testing.T) {
	held := makeEvent(1, 42, 10, 11)
	held.Versions = schedule.NewVersions(1, 2, 3, 4, 5)
	incoming := held
	incoming.Versions = schedule.NewVersions(1, 2, 4, 4, 5)
	assert.True(t, isNewer(incoming, held))
	assert.False(t, isNewer(held, incoming))

	// The first difference decides, even if later slots disagree
	incoming.Versions = schedule.NewVersions(1, 3, 0, 0, 0)
	assert.True(t, isNewer(incoming, held))
}

func TestIsNewerAbsent(t *testing.T) {
	held := makeEvent(1, 42, 10, 11)
	held.Versions = schedule.NewVersions(1, 5)
	incoming := held
	incoming.Versions = schedule.NewVersions(1).Set(schedule.PatientVersion, 2)
	// customer is absent on one side so it ties; patient is absent
	// on the other side; everything ties
	assert.True(t, isNewer(incoming, held))
	assert.True(t, isNewer(held, incoming))
}

func TestIsNewerAllTies(t *testing.T) {
	held := makeEvent(1, 42, 10, 11)
	incoming := makeEvent(1, 42, 12, 13)
	assert.True(t, isNewer(incoming, held))
}

func TestRecordUpdate(t *testing.T) {
	rec := newRecord(makeEvent(1, 42, 10, 11))
	assert.Equal(t, uint64(0), rec.modCount.Load())

	older := makeEvent(1, 42, 12, 13)
	older.Version = 0
	assert.False(t, rec.update(older))
	assert.Equal(t, uint64(0), rec.modCount.Load())
	assert.True(t, rec.snapshot().Start.Equal(at(10)))

	newer := makeEvent(1, 42, 12, 13)
	newer.Version = 2
	assert.True(t, rec.update(newer))
	assert.Equal(t, uint64(1), rec.modCount.Load())
	assert.True(t, rec.snapshot().Start.Equal(at(12)))
}

func TestRecordBelongsTo(t *testing.T) {
	rec := newRecord(makeEvent(1, 42, 10, 11))
	assert.True(t, rec.belongsTo(42, at(9), at(10.5)))
	assert.True(t, rec.belongsTo(42, at(10.5), at(11.5)))
	assert.False(t, rec.belongsTo(42, at(11), at(12)))
	assert.False(t, rec.belongsTo(43, at(9), at(12)))
	assert.True(t, rec.intersects(at(9), at(10.5)))
	assert.False(t, rec.intersects(at(8), at(10)))

	event, modCount, ok := rec.check(42, at(10), at(11))
	assert.True(t, ok)
	assert.Equal(t, uint64(0), modCount)
	assert.Equal(t, int64(1), event.ID)
}

func TestHandleResolve(t *testing.T) {
	rec := newRecord(makeEvent(1, 42, 10, 11))
	assert.Nil(t, newHandle(rec, 42, at(12), at(13)))

	h := newHandle(rec, 42, at(0), at(24))
	if !assert.NotNil(t, h) {
		return
	}

	moved := makeEvent(1, 42, 14, 15)
	moved.Version = 2
	rec.update(moved)
	event, ok := h.resolve(42, at(0), at(24))
	assert.True(t, ok)
	assert.True(t, event.Start.Equal(at(14)))
	assert.Equal(t, uint64(1), h.modCount)

	gone := makeEvent(1, 43, 14, 15)
	gone.Version = 3
	rec.update(gone)
	_, ok = h.resolve(42, at(0), at(24))
	assert.False(t, ok)
}

func TestRegistryRefs(t *testing.T) {
	reg := newRegistry()
	a, created := reg.acquire(makeEvent(1, 42, 10, 11))
	assert.True(t, created)
	b, created := reg.acquire(makeEvent(1, 42, 12, 13))
	assert.False(t, created)
	assert.True(t, a == b)
	assert.True(t, b.snapshot().Start.Equal(at(10)), "acquire does not merge")
	assert.Equal(t, 1, reg.Len())

	reg.retain(a)
	reg.release(a)
	reg.release(a)
	assert.True(t, reg.lookup(1) == a)
	reg.release(a)
	assert.Nil(t, reg.lookup(1))
	assert.Equal(t, 0, reg.Len())

	// A new record for the same ID is a different object
	c, created := reg.acquire(makeEvent(1, 42, 10, 11))
	assert.True(t, created)
	assert.False(t, a == c)
}

// lookup finds the registered record for an ID, if any, without
// taking a reference.
func (reg *registry) lookup(id int64) *record {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	return reg.records[id]
}
