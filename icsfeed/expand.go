// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package icsfeed

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences is the number of instances of one recurring
// event expanded per query if Config.MaxOccurrences is not set.
const DefaultMaxOccurrences = 5000

// eventID derives a stable event ID for one instance of a calendar
// event from its UID and original start time.
func eventID(uid string, start time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(uid))
	h.Write([]byte{0})
	h.Write([]byte(start.UTC().Format(time.RFC3339)))
	id := int64(h.Sum64() & math.MaxInt64)
	if id == 0 {
		id = 1
	}
	return id
}

// instance turns one occurrence of a calendar event into an event
// snapshot.  original is the start the recurrence rule produced, which
// an override may have moved.
func instance(entity int64, ev vevent, original, start, end time.Time) schedule.Event {
	return schedule.Event{
		ID:      eventID(ev.UID, original),
		Entity:  entity,
		Start:   start,
		End:     end,
		Version: ev.Sequence,
		Data: map[string]interface{}{
			"uid":         ev.UID,
			"summary":     ev.Summary,
			"description": ev.Description,
			"location":    ev.Location,
			"all_day":     ev.AllDay,
		},
	}
}

// expansion holds the settings for one expand call.
type expansion struct {
	entity         int64
	r              schedule.Range
	maxOccurrences int
}

// expand produces every event instance owned by entity that
// intersects r.  The second result lists UIDs whose recurrence was cut
// off at maxOccurrences.
func (x expansion) expand(events []vevent) ([]schedule.Event, []string) {
	overrides := make(map[string][]vevent)
	var bases []vevent
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			bases = append(bases, ev)
		}
	}

	var result []schedule.Event
	var truncated []string
	emit := func(ev vevent, original, start, end time.Time) {
		event := instance(x.entity, ev, original, start, end)
		if event.Intersects(x.r.From, x.r.To) {
			result = append(result, event)
		}
	}

	for _, base := range bases {
		starts := []time.Time{base.Start}
		if base.RRule != "" || len(base.RDates) > 0 {
			var hitCap bool
			var err error
			starts, hitCap, err = x.occurrences(base)
			if err != nil {
				// Treat an unparseable rule as a single event
				starts = []time.Time{base.Start}
			} else if hitCap {
				truncated = append(truncated, base.UID)
			}
		}

		duration := base.End.Sub(base.Start)
		for _, start := range starts {
			if overridden(overrides[base.UID], start) {
				continue
			}
			end := start.Add(duration)
			if base.AllDay {
				end = start.AddDate(0, 0, int(duration/(24*time.Hour)))
			}
			emit(base, start, start, end)
		}
	}

	// Overrides can move an instance anywhere, including into the
	// range from an original start outside it, so every override is
	// considered on its own
	for _, list := range overrides {
		for _, o := range list {
			emit(o, *o.RecurrenceID, o.Start, o.End)
		}
	}
	return result, truncated
}

// occurrences lists the start times of a recurring event whose
// instances could intersect the range, stopping after maxOccurrences.
func (x expansion) occurrences(ev vevent) ([]time.Time, bool, error) {
	loc := ev.Start.Location()
	var set rrule.Set
	set.DTStart(ev.Start)
	if ev.RRule != "" {
		rule, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			return nil, false, err
		}
		rule.DTStart(ev.Start)
		set.RRule(rule)
	} else {
		// DTSTART is always the first instance of an RDATE set
		set.RDate(ev.Start)
	}
	for _, rd := range ev.RDates {
		set.RDate(rd.In(loc))
	}
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(loc))
	}

	// An instance starting up to one duration before the range
	// still reaches into it
	after := x.r.From.Add(-ev.End.Sub(ev.Start)).In(loc)
	before := x.r.To.In(loc)
	var starts []time.Time
	next := set.Iterator()
	for {
		start, ok := next()
		if !ok || start.After(before) {
			return starts, false, nil
		}
		if start.Before(after) {
			continue
		}
		if len(starts) == x.maxOccurrences {
			return starts, true, nil
		}
		starts = append(starts, start)
	}
}

// overridden determines whether one of overrides replaces the
// instance that would have started at start.
func overridden(overrides []vevent, start time.Time) bool {
	for _, o := range overrides {
		if o.RecurrenceID.Equal(start) {
			return true
		}
	}
	return false
}
