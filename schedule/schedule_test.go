// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func at(hours float64) time.Time {
	return base.Add(time.Duration(hours * float64(time.Hour)))
}

func TestIntersects(t *testing.T) {
	event := Event{ID: 1, Start: at(10), End: at(11)}
	for _, tc := range []struct {
		from, to float64
		expected bool
	}{
		{9, 10.5, true},
		{10.5, 11.5, true},
		{10, 11, true},
		{10.25, 10.75, true},
		{11, 12, false},
		{9, 10, false},
		{8, 9, false},
	} {
		assert.Equal(t, tc.expected, event.Intersects(at(tc.from), at(tc.to)),
			"[%v, %v)", tc.from, tc.to)
	}
}

func TestIntersectsInstant(t *testing.T) {
	event := Event{ID: 1, Start: at(10), End: at(10)}
	assert.True(t, event.Intersects(at(10), at(11)))
	assert.True(t, event.Intersects(at(9), at(11)))
	assert.False(t, event.Intersects(at(9), at(10)))
	assert.False(t, event.Intersects(at(11), at(12)))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Event{ID: 1, Start: at(10), End: at(11)}.Validate())
	assert.NoError(t, Event{ID: 1, Start: at(10), End: at(10)}.Validate())
	assert.Equal(t, ErrBadEvent{Reason: "missing event id"},
		Event{Start: at(10), End: at(11)}.Validate())
	assert.IsType(t, ErrBadEvent{}, Event{ID: 1, Start: at(11), End: at(10)}.Validate())
}

func TestVersions(t *testing.T) {
	v := NewVersions(1, 2)
	value, ok := v.Get(ParticipationVersion)
	assert.True(t, ok)
	assert.Equal(t, int64(1), value)
	value, ok = v.Get(CustomerVersion)
	assert.True(t, ok)
	assert.Equal(t, int64(2), value)
	_, ok = v.Get(PatientVersion)
	assert.False(t, ok)
	_, ok = v.Get(NumVersionKeys)
	assert.False(t, ok)

	w := v.Set(ScheduleTypeVersion, 7)
	_, ok = v.Get(ScheduleTypeVersion)
	assert.False(t, ok, "Set must not modify its receiver")
	assert.Equal(t, map[string]int64{
		"participation": 1,
		"customer":      2,
		"schedule_type": 7,
	}, w.Map())
	assert.Equal(t, w, VersionsFromMap(w.Map()))
	assert.Equal(t, "VersionKey(9)", VersionKey(9).String())
}

func TestDay(t *testing.T) {
	r := Day(at(10), time.UTC)
	assert.True(t, r.From.Equal(base))
	assert.True(t, r.To.Equal(base.Add(24*time.Hour)))
	assert.True(t, r.Valid())

	loc := time.FixedZone("UTC-5", -5*60*60)
	r = Day(at(2), loc)
	assert.True(t, r.From.Equal(base.Add(-19*time.Hour)))
	assert.True(t, r.To.Equal(base.Add(5*time.Hour)))
}

func TestKey(t *testing.T) {
	r := Range{From: at(10), To: at(11)}
	loc := time.FixedZone("UTC+2", 2*60*60)
	shifted := Range{From: r.From.In(loc), To: r.To.In(loc)}
	assert.Equal(t, NewKey(42, r), NewKey(42, shifted))
	assert.NotEqual(t, NewKey(42, r), NewKey(43, r))

	back := NewKey(42, r).Range()
	assert.True(t, back.From.Equal(r.From))
	assert.True(t, back.To.Equal(r.To))
}
