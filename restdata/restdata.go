// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver and restclient packages.  Generally JSON encodings of
// these are passed across the wire as the
// application/vnd.diffeo.schedcache.v1+json MIME type.
//
// API Usage
//
// HTTP GET the root document at its specified URL.  This will return
// a JSON serialization of the RootData object.  That serialization
// has links to other resources; follow these links, filling in
// template values, to get to other resources.
//
// The URL fields are RFC 6570 URI templates, URL strings with a
// {parameter} in curly braces or a {?from,to} query string.  For
// instance, if the system is rooted at /, a JSON serialization of
// RootData will include
//
//     {
//         "events_url": "/entity/{entity}/events{?from,to}",
//         "day_url": "/entity/{entity}/day/{day}"
//     }
//
// While the URL structure is predictable and formulaic, it is not
// actually part of the API contract.  The only specific guarantee is
// that retrieving the root resource will return a serialization of
// RootData.
//
// Encoding Considerations
//
// Entity and event IDs appear in URLs as decimal integers.  Times in
// query strings are RFC 3339 strings; days are YYYY-MM-DD in the
// server's configured time zone.  See the helpers in this package.
package restdata

import "time"

// V1JSONMediaType is the MIME type for version 1 of the JSON
// representation.
const V1JSONMediaType = "application/vnd.diffeo.schedcache.v1+json"

// JSONMediaType is the MIME type for the latest JSON representation.
const JSONMediaType = "application/vnd.diffeo.schedcache+json"

// DataDict holds the descriptive attributes of an event.  If any of
// the values is (possibly further embedded) a byte slice, this is
// encoded as a base64-encoded CBOR string; otherwise this is encoded
// as a normal JSON dictionary.
type DataDict map[string]interface{}

// Resource is a base type for all resources in this module.
type Resource struct {
	// URL points at this resource.  This field does not need to
	// be provided when sending data.
	URL string `json:"url,omitempty"`
}

// RootData is returned by the root path.
type RootData struct {
	Resource

	// EventsURL is a template with parameters entity, from, and
	// to.  It supports HTTP GET, returning an EventList of every
	// event of the entity overlapping [from, to).
	EventsURL string `json:"events_url"`

	// DayURL is a template with parameters entity and day.  It
	// supports HTTP GET, returning an EventList for the whole day.
	DayURL string `json:"day_url"`

	// CachedURL is a template with parameters entity and day.  It
	// supports HTTP GET, returning an EventList for the day only
	// if it is already cached; it never loads anything.
	CachedURL string `json:"cached_url"`

	// ModHashURL is a template with parameters entity, from, and
	// to.  It supports HTTP GET, returning a ModHash without
	// loading anything.
	ModHashURL string `json:"mod_hash_url"`

	// EventURL is a template with parameter event.  It supports
	// HTTP PUT of an Event to create or update it.
	EventURL string `json:"event_url"`

	// RemoveEventURL is a template with parameter event.  It
	// supports HTTP POST of an Event snapshot to delete it.
	RemoveEventURL string `json:"remove_event_url"`

	// ClearURL supports HTTP POST to forget everything cached.
	ClearURL string `json:"clear_url"`

	// StatsURL supports HTTP GET, returning Stats.
	StatsURL string `json:"stats_url"`

	// PerDay is true if the server caches whole days.
	PerDay bool `json:"per_day"`

	// Location names the time zone days are measured in.
	Location string `json:"location"`
}

// Event is the representation of a single event snapshot.
type Event struct {
	Resource

	// ID is the event identifier.  It can be omitted when
	// sending an event to its own URL.
	ID int64 `json:"id"`

	// Entity is the schedule entity that owns the event.
	Entity int64 `json:"entity"`

	// Start and End bound the event.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Version is the primary version of the event.
	Version int64 `json:"version"`

	// Versions holds the related-object versions, keyed by name
	// ("customer", "patient", ...).
	Versions map[string]int64 `json:"versions,omitempty"`

	// Data holds descriptive attributes.
	Data DataDict `json:"data,omitempty"`
}

// EventList is returned from the event query endpoints.
type EventList struct {
	// Events holds the events sorted by start time and then ID.
	Events []Event `json:"events"`

	// ModHash changes whenever the set of events might have
	// changed.
	ModHash int64 `json:"mod_hash"`

	// Cached is only meaningful on the cached-day endpoint.  If
	// it is false the day was not cached and Events is empty.
	Cached bool `json:"cached,omitempty"`
}

// ModHash is returned from the modification hash endpoint.
type ModHash struct {
	// ModHash is the modification hash of the range, or -1 if
	// any part of the range is not cached.
	ModHash int64 `json:"mod_hash"`
}

// Stats holds the running counters of the cache.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Loads      uint64 `json:"loads"`
	LoadErrors uint64 `json:"load_errors"`
	Evictions  uint64 `json:"evictions"`
	Ranges     int    `json:"ranges"`
	Records    int    `json:"records"`
}

// Empty is the body of requests that carry no data.
type Empty struct{}

// ErrorResponse can be a response to any method, generally accompanied
// by a failing HTTP status code.
type ErrorResponse struct {
	// Error is a short description of the failure.  This may be
	// the name of a schedule API error, the string "panic", or
	// the string "error" for some other kind of error.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// Value is an extra parameter to the error if applicable.
	Value string `json:"value,omitempty"`

	// ID is the event or entity the error is about, if any.
	ID int64 `json:"id,omitempty"`

	// Stack holds a formatted backtrace, if the method failed
	// due to a panic.
	Stack string `json:"stack,omitempty"`
}
