// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"strconv"
	"time"
)

// DayFormat is the layout of a day in a URL.
const DayFormat = "2006-01-02"

// EncodeID formats an entity or event ID for a URL.
func EncodeID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// DecodeID parses an entity or event ID from a URL.
func DecodeID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// EncodeDay formats the calendar day of t, in t's own location, for
// a URL.
func EncodeDay(t time.Time) string {
	return t.Format(DayFormat)
}

// DecodeDay parses a day from a URL, returning midnight at the
// start of that day in loc.
func DecodeDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DayFormat, s, loc)
}

// EncodeTime formats an instant for a URL query string.
func EncodeTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// DecodeTime parses an instant from a URL query string.
func DecodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
