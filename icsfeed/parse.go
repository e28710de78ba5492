// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package icsfeed

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// vevent is the part of one VEVENT component this package uses.
type vevent struct {
	UID      string
	Sequence int64

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	RDates  []time.Time
	ExDates []time.Time

	// RecurrenceID is set on a VEVENT that replaces one instance of
	// a recurring event.
	RecurrenceID *time.Time
}

// parse reads an iCalendar payload into its events.  VEVENTs that
// cannot be understood are returned as errors in the second slice
// and otherwise skipped.
func parse(body []byte) ([]vevent, []error, error) {
	if len(body) == 0 {
		return nil, nil, errors.New("empty calendar")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	var events []vevent
	var errs []error
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, ev)
	}
	return events, errs, nil
}

func parseVEvent(ve *ical.VEvent) (ev vevent, err error) {
	prop := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if prop == nil || prop.Value == "" {
		err = errors.New("VEVENT has no UID")
		return
	}
	ev.UID = prop.Value

	if prop := ve.GetProperty(ical.ComponentPropertySequence); prop != nil {
		ev.Sequence, _ = strconv.ParseInt(strings.TrimSpace(prop.Value), 10, 64)
	}
	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		ev.Summary = prop.Value
	}
	if prop := ve.GetProperty(ical.ComponentPropertyDescription); prop != nil {
		ev.Description = prop.Value
	}
	if prop := ve.GetProperty(ical.ComponentPropertyLocation); prop != nil {
		ev.Location = prop.Value
	}

	prop = ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		err = ErrBadComponent{UID: ev.UID, Reason: "no DTSTART"}
		return
	}
	ev.AllDay = isDate(prop)
	if ev.AllDay {
		ev.Start, err = ve.GetAllDayStartAt()
	} else {
		ev.Start, err = ve.GetStartAt()
	}
	if err != nil {
		err = ErrBadComponent{UID: ev.UID, Reason: err.Error()}
		return
	}

	if ve.GetProperty(ical.ComponentPropertyDtEnd) == nil {
		// No end: an all-day event lasts the day, anything else is
		// instantaneous
		ev.End = ev.Start
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, 1)
		}
	} else if ev.AllDay {
		ev.End, err = ve.GetAllDayEndAt()
	} else {
		ev.End, err = ve.GetEndAt()
	}
	if err != nil {
		err = ErrBadComponent{UID: ev.UID, Reason: err.Error()}
		return
	}
	if ev.End.Before(ev.Start) {
		err = ErrBadComponent{UID: ev.UID, Reason: "DTEND before DTSTART"}
		return
	}

	if prop := ve.GetProperty(ical.ComponentPropertyRrule); prop != nil {
		ev.RRule = prop.Value
	}

	if ev.RDates, err = dateList(ve, ical.ComponentPropertyRdate, ev); err != nil {
		return
	}
	if ev.ExDates, err = dateList(ve, ical.ComponentPropertyExdate, ev); err != nil {
		return
	}

	if prop := ve.GetProperty("RECURRENCE-ID"); prop != nil {
		t, perr := parseTime(prop.Value, prop.ICalParameters, ev.Start.Location())
		if perr != nil {
			err = ErrBadComponent{UID: ev.UID, Reason: "bad RECURRENCE-ID: " + perr.Error()}
			return
		}
		ev.RecurrenceID = &t
	}
	return
}

// dateList reads every value of a repeatable, comma-separated
// date-time property such as RDATE or EXDATE.
func dateList(ve *ical.VEvent, property ical.ComponentProperty, ev vevent) ([]time.Time, error) {
	var dates []time.Time
	for _, prop := range ve.GetProperties(property) {
		for _, part := range strings.Split(prop.Value, ",") {
			t, err := parseTime(strings.TrimSpace(part), prop.ICalParameters, ev.Start.Location())
			if err != nil {
				return nil, ErrBadComponent{UID: ev.UID, Reason: "bad " + string(property) + ": " + err.Error()}
			}
			dates = append(dates, t)
		}
	}
	return dates, nil
}

// isDate determines whether a date-time property holds only a date.
func isDate(prop *ical.IANAProperty) bool {
	if values, ok := prop.ICalParameters["VALUE"]; ok && len(values) > 0 {
		if strings.EqualFold(values[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(prop.Value, "T")
}

// parseTime parses a DATE or DATE-TIME value.  A TZID parameter names
// the zone of a local time; otherwise local times are in def.
func parseTime(value string, params map[string][]string, def *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty time value")
	}
	loc := def
	if tzids, ok := params["TZID"]; ok && len(tzids) > 0 {
		tz, err := time.LoadLocation(tzids[0])
		if err != nil {
			return time.Time{}, err
		}
		loc = tz
	}
	switch {
	case strings.HasSuffix(value, "Z"):
		return time.Parse("20060102T150405Z", value)
	case strings.Contains(value, "T"):
		return time.ParseInLocation("20060102T150405", value, loc)
	default:
		return time.ParseInLocation("20060102", value, loc)
	}
}
