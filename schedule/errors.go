// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schedule

import (
	"errors"
	"fmt"
)

// ErrBadRange is returned from range queries whose start is not
// before their end.
var ErrBadRange = errors.New("Range start must be before its end")

// ErrUnsupportedEvent is returned by a Factory that does not know how
// to convert some value into an Event.
type ErrUnsupportedEvent struct {
	Type string
}

func (err ErrUnsupportedEvent) Error() string {
	return fmt.Sprintf("Cannot convert %v to an event", err.Type)
}

// ErrBadEvent is returned when an event snapshot is unusable, for
// instance because it has no ID.
type ErrBadEvent struct {
	ID     int64
	Reason string
}

func (err ErrBadEvent) Error() string {
	if err.ID == 0 {
		return "Bad event: " + err.Reason
	}
	return fmt.Sprintf("Bad event %v: %v", err.ID, err.Reason)
}

// ErrNoSuchEvent is returned by backends asked to delete or fetch an
// event that does not exist.
type ErrNoSuchEvent struct {
	ID int64
}

func (err ErrNoSuchEvent) Error() string {
	return fmt.Sprintf("No such event %v", err.ID)
}
