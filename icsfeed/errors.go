// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package icsfeed

import "fmt"

// ErrNoSuchFeed is returned when asking for the events of an entity
// that has no configured feed.
type ErrNoSuchFeed struct {
	Entity int64
}

func (err ErrNoSuchFeed) Error() string {
	return fmt.Sprintf("No calendar feed for entity %v", err.Entity)
}

// ErrBadComponent describes a VEVENT that could not be used.
type ErrBadComponent struct {
	UID    string
	Reason string
}

func (err ErrBadComponent) Error() string {
	return fmt.Sprintf("Bad calendar event %q: %v", err.UID, err.Reason)
}

// ErrHTTPStatus is returned when fetching a feed over HTTP does not
// succeed.
type ErrHTTPStatus struct {
	URL    string
	Status string
}

func (err ErrHTTPStatus) Error() string {
	return fmt.Sprintf("Fetching %v: %v", err.URL, err.Status)
}
