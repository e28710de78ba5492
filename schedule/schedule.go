// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package schedule defines the abstract API to the schedule event
// cache.
//
// A schedule entity is a calendar that owns events: a clinician's
// appointment book, an examination room, and so on.  Entities are
// identified only by an integer ID.  Events are immutable snapshots;
// whenever the underlying event changes, a new snapshot with a newer
// version is produced and handed to a Listener.
//
// Backends provide an EventSource to read the authoritative event
// set.  Backends that can also write events notify registered
// Listeners after every successful write, which is how a cache in
// front of them stays current.
package schedule

import (
	"fmt"
	"time"
)

// UnknownModHash is the modification hash returned when some part of
// a requested range is not cached.  Callers must treat it as "assume
// changed".
const UnknownModHash int64 = -1

// Event is a point-in-time snapshot of a single scheduled occurrence,
// an appointment or a calendar block.
type Event struct {
	// ID is the immutable event identifier.
	ID int64

	// Entity is the ID of the schedule entity that owns the event.
	Entity int64

	// Start and End bound the event as [Start, End).
	Start time.Time
	End   time.Time

	// Version is the primary version of the event itself.
	Version int64

	// Versions holds the versions of the related objects the event
	// depends on, used to break ties between snapshots with the
	// same primary Version.
	Versions Versions

	// Data holds descriptive attributes.  The cache carries these
	// but never looks at them.
	Data map[string]interface{}
}

// Validate checks that an event is minimally usable: it must have an
// ID and must not end before it starts.
func (e Event) Validate() error {
	if e.ID == 0 {
		return ErrBadEvent{Reason: "missing event id"}
	}
	if e.End.Before(e.Start) {
		return ErrBadEvent{ID: e.ID, Reason: "event ends before it starts"}
	}
	return nil
}

// Intersects determines whether the event overlaps a time range.  An
// instantaneous event (End not after Start) intersects a range if its
// start falls inside it.
func (e Event) Intersects(from, to time.Time) bool {
	if !e.End.After(e.Start) {
		return !e.Start.Before(from) && e.Start.Before(to)
	}
	return e.Start.Before(to) && e.End.After(from)
}

// VersionKey names one of the secondary version slots of an event.
// The numeric order of the keys is the order in which they are
// compared.
type VersionKey int

const (
	// ParticipationVersion is the version of the schedule
	// participation linking the event to its entity.
	ParticipationVersion VersionKey = iota

	// CustomerVersion is the version of the customer record.
	CustomerVersion

	// PatientVersion is the version of the patient record.
	PatientVersion

	// ClinicianVersion is the version of the clinician record.
	ClinicianVersion

	// ScheduleTypeVersion is the version of the appointment or
	// block type.
	ScheduleTypeVersion

	// NumVersionKeys is the number of secondary version slots.
	NumVersionKeys
)

var versionKeyNames = [NumVersionKeys]string{
	"participation",
	"customer",
	"patient",
	"clinician",
	"schedule_type",
}

func (k VersionKey) String() string {
	if k < 0 || k >= NumVersionKeys {
		return fmt.Sprintf("VersionKey(%d)", int(k))
	}
	return versionKeyNames[k]
}

// Versions is the ordered set of secondary versions of an event.  Any
// slot may be absent.  The zero value has every slot absent.
type Versions struct {
	values  [NumVersionKeys]int64
	present [NumVersionKeys]bool
}

// NewVersions creates a Versions with the first len(values) slots
// set, in VersionKey order.  Extra values are ignored.
func NewVersions(values ...int64) Versions {
	var v Versions
	for i, value := range values {
		if i >= int(NumVersionKeys) {
			break
		}
		v = v.Set(VersionKey(i), value)
	}
	return v
}

// Get returns the version in some slot, and whether it is present.
func (v Versions) Get(key VersionKey) (int64, bool) {
	if key < 0 || key >= NumVersionKeys {
		return 0, false
	}
	return v.values[key], v.present[key]
}

// Set returns a copy of v with some slot set.
func (v Versions) Set(key VersionKey, value int64) Versions {
	if key >= 0 && key < NumVersionKeys {
		v.values[key] = value
		v.present[key] = true
	}
	return v
}

// Map returns the present versions as a map keyed by slot name.
func (v Versions) Map() map[string]int64 {
	result := make(map[string]int64)
	for k := VersionKey(0); k < NumVersionKeys; k++ {
		if value, ok := v.Get(k); ok {
			result[k.String()] = value
		}
	}
	return result
}

// VersionsFromMap is the inverse of Versions.Map.  Unknown names are
// ignored.
func VersionsFromMap(m map[string]int64) Versions {
	var v Versions
	for k := VersionKey(0); k < NumVersionKeys; k++ {
		if value, ok := m[k.String()]; ok {
			v = v.Set(k, value)
		}
	}
	return v
}

// Range is a half-open time interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Valid returns true if the range is non-empty.
func (r Range) Valid() bool {
	return r.From.Before(r.To)
}

// Day returns the calendar day containing t, with day boundaries at
// midnight in loc.
func Day(t time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return Range{From: from, To: from.AddDate(0, 0, 1)}
}

func (r Range) String() string {
	return "[" + r.From.Format(time.RFC3339) + ", " + r.To.Format(time.RFC3339) + ")"
}

// Key identifies one cached range of one entity.  Two keys are equal
// if and only if they have the same entity ID and bounds, regardless
// of time zone.
type Key struct {
	Entity int64
	From   int64
	To     int64
}

// NewKey builds the key for an entity and range.
func NewKey(entity int64, r Range) Key {
	return Key{Entity: entity, From: r.From.UnixNano(), To: r.To.UnixNano()}
}

// Range returns the bounds of the key, in UTC.
func (k Key) Range() Range {
	return Range{
		From: time.Unix(0, k.From).UTC(),
		To:   time.Unix(0, k.To).UTC(),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.Entity, k.From, k.To)
}

// EventSource reads the authoritative set of events for an entity.
type EventSource interface {
	// Events returns every event known to the backing store that
	// belongs to entity and intersects r.  The result need not be
	// sorted.
	Events(entity int64, r Range) ([]Event, error)
}

// Factory converts some store-native event representation into an
// Event snapshot.
type Factory interface {
	Event(source interface{}) (Event, error)
}

// Listener receives change notifications.  Backends call AddEvent
// whenever an event is created or updated, and RemoveEvent whenever
// an event is deleted.
type Listener interface {
	AddEvent(source interface{}) error
	RemoveEvent(source interface{}) error
}

// Store is an event source that can also be written to.  After every
// successful write the store notifies its listeners, in the order
// they were added.
type Store interface {
	EventSource

	// Get retrieves a single event by ID, returning ErrNoSuchEvent
	// if it does not exist.
	Get(id int64) (Event, error)

	// Put creates or replaces an event.  If the event already
	// exists and the new Version is not greater than the stored
	// one, the stored Version is incremented instead.  Returns the
	// event as stored.
	Put(event Event) (Event, error)

	// Delete removes an event, returning ErrNoSuchEvent if it does
	// not exist.
	Delete(id int64) error

	// Watch adds a listener for future changes.
	Watch(listener Listener)
}
