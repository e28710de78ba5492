// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package icsfeed

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calendar = strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Clinic//Schedule//EN
BEGIN:VEVENT
UID:single@clinic
DTSTAMP:20240101T000000Z
DTSTART:20240101T100000Z
DTEND:20240101T110000Z
SUMMARY:Checkup
SEQUENCE:2
END:VEVENT
BEGIN:VEVENT
UID:daily@clinic
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000Z
DTEND:20240101T093000Z
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20240103T090000Z
SUMMARY:Rounds
END:VEVENT
BEGIN:VEVENT
UID:daily@clinic
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240104T090000Z
DTSTART:20240104T140000Z
DTEND:20240104T143000Z
SEQUENCE:1
SUMMARY:Rounds (moved)
END:VEVENT
BEGIN:VEVENT
UID:broken@clinic
DTSTAMP:20240101T000000Z
SUMMARY:No start
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")

func utc(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func between(from, to time.Time) schedule.Range {
	return schedule.Range{From: from, To: to}
}

// byUID groups the start times of events by their calendar UID.
func byUID(events []schedule.Event) map[string][]time.Time {
	result := make(map[string][]time.Time)
	for _, event := range events {
		uid := event.Data["uid"].(string)
		result[uid] = append(result[uid], event.Start.UTC())
	}
	return result
}

func expandCalendar(t *testing.T, r schedule.Range) []schedule.Event {
	vevents, errs, err := parse([]byte(calendar))
	require.NoError(t, err)
	assert.Len(t, errs, 1)
	events, truncated := expansion{entity: 42, r: r, maxOccurrences: 100}.expand(vevents)
	assert.Empty(t, truncated)
	return events
}

func TestParse(t *testing.T) {
	vevents, errs, err := parse([]byte(calendar))
	require.NoError(t, err)
	if assert.Len(t, errs, 1) {
		assert.IsType(t, ErrBadComponent{}, errs[0])
	}
	if assert.Len(t, vevents, 3) {
		single := vevents[0]
		assert.Equal(t, "single@clinic", single.UID)
		assert.Equal(t, int64(2), single.Sequence)
		assert.Equal(t, "Checkup", single.Summary)
		assert.True(t, single.Start.Equal(utc(1, 10, 0)))
		assert.True(t, single.End.Equal(utc(1, 11, 0)))
		assert.False(t, single.AllDay)

		daily := vevents[1]
		assert.Equal(t, "FREQ=DAILY;COUNT=5", daily.RRule)
		if assert.Len(t, daily.ExDates, 1) {
			assert.True(t, daily.ExDates[0].Equal(utc(3, 9, 0)))
		}

		moved := vevents[2]
		if assert.NotNil(t, moved.RecurrenceID) {
			assert.True(t, moved.RecurrenceID.Equal(utc(4, 9, 0)))
		}
	}

	_, _, err = parse(nil)
	assert.Error(t, err)
}

func TestExpandAll(t *testing.T) {
	events := expandCalendar(t, between(utc(1, 0, 0), utc(10, 0, 0)))
	uids := byUID(events)
	assert.Equal(t, []time.Time{utc(1, 10, 0)}, uids["single@clinic"])
	assert.ElementsMatch(t, []time.Time{
		utc(1, 9, 0),
		utc(2, 9, 0),
		utc(4, 14, 0),
		utc(5, 9, 0),
	}, uids["daily@clinic"])

	for _, event := range events {
		assert.Equal(t, int64(42), event.Entity)
		assert.NoError(t, event.Validate())
	}
}

func TestExpandOverrideMovedIn(t *testing.T) {
	events := expandCalendar(t, between(utc(4, 12, 0), utc(4, 18, 0)))
	if assert.Len(t, events, 1) {
		event := events[0]
		assert.True(t, event.Start.Equal(utc(4, 14, 0)))
		assert.Equal(t, int64(1), event.Version)
		assert.Equal(t, eventID("daily@clinic", utc(4, 9, 0)), event.ID)
		assert.Equal(t, "Rounds (moved)", event.Data["summary"])
	}
}

func TestExpandOverrideMovedOut(t *testing.T) {
	events := expandCalendar(t, between(utc(4, 8, 0), utc(4, 10, 0)))
	assert.Empty(t, events)
}

func TestExpandOverlapStart(t *testing.T) {
	events := expandCalendar(t, between(utc(2, 9, 15), utc(2, 9, 45)))
	assert.Equal(t, []time.Time{utc(2, 9, 0)}, byUID(events)["daily@clinic"])
}

func TestExpandStableIDs(t *testing.T) {
	wide := expandCalendar(t, between(utc(1, 0, 0), utc(10, 0, 0)))
	narrow := expandCalendar(t, between(utc(2, 0, 0), utc(3, 0, 0)))
	if assert.Len(t, narrow, 1) {
		found := false
		for _, event := range wide {
			if event.ID == narrow[0].ID {
				found = true
				assert.True(t, event.Start.Equal(narrow[0].Start))
			}
		}
		assert.True(t, found)
	}
}

func TestExpandAllDay(t *testing.T) {
	body := strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Clinic//Schedule//EN
BEGIN:VEVENT
UID:closed@clinic
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240102
DTEND;VALUE=DATE:20240103
SUMMARY:Closed
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")
	vevents, errs, err := parse([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, errs)
	if assert.Len(t, vevents, 1) {
		ev := vevents[0]
		assert.True(t, ev.AllDay)
		assert.Equal(t, 24*time.Hour, ev.End.Sub(ev.Start))
		assert.Equal(t, 2, ev.Start.Day())
	}
}

func TestEventID(t *testing.T) {
	a := eventID("a", utc(1, 9, 0))
	assert.NotEqual(t, int64(0), a)
	assert.True(t, a > 0)
	assert.Equal(t, a, eventID("a", utc(1, 9, 0).In(time.FixedZone("X", 3600))))
	assert.NotEqual(t, a, eventID("a", utc(2, 9, 0)))
	assert.NotEqual(t, a, eventID("b", utc(1, 9, 0)))
}

func TestSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinic.ics")
	require.NoError(t, os.WriteFile(path, []byte(calendar), 0644))

	logger, hook := test.NewNullLogger()
	source := New(Config{
		Feeds:  map[int64]string{42: path},
		Logger: logger,
	})
	assert.Equal(t, []int64{42}, source.Entities())

	events, err := source.Events(42, between(utc(1, 0, 0), utc(2, 0, 0)))
	if assert.NoError(t, err) {
		assert.Len(t, events, 2)
	}
	if assert.Len(t, hook.Entries, 1) {
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, int64(42), hook.LastEntry().Data["entity"])
	}

	_, err = source.Events(43, between(utc(1, 0, 0), utc(2, 0, 0)))
	assert.Equal(t, ErrNoSuchFeed{Entity: 43}, err)

	_, err = source.Events(42, between(utc(2, 0, 0), utc(1, 0, 0)))
	assert.Equal(t, schedule.ErrBadRange, err)
}

func TestSourceHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clinic.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(calendar))
	}))
	defer server.Close()

	logger, _ := test.NewNullLogger()
	source := New(Config{
		Feeds: map[int64]string{
			42: server.URL + "/clinic.ics",
			43: server.URL + "/missing.ics",
		},
		Logger: logger,
	})

	events, err := source.Events(42, between(utc(4, 0, 0), utc(5, 0, 0)))
	if assert.NoError(t, err) && assert.Len(t, events, 1) {
		assert.True(t, events[0].Start.Equal(utc(4, 14, 0)))
	}

	_, err = source.Events(43, between(utc(4, 0, 0), utc(5, 0, 0)))
	assert.IsType(t, ErrHTTPStatus{}, err)
}

func TestSourceMaxOccurrences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clinic.ics")
	require.NoError(t, os.WriteFile(path, []byte(calendar), 0644))

	logger, hook := test.NewNullLogger()
	source := New(Config{
		Feeds:          map[int64]string{42: path},
		MaxOccurrences: 2,
		Logger:         logger,
	})
	events, err := source.Events(42, between(utc(1, 0, 0), utc(10, 0, 0)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []time.Time{
		utc(1, 9, 0),
		utc(2, 9, 0),
		utc(4, 14, 0),
	}, byUID(events)["daily@clinic"])
	if assert.NotNil(t, hook.LastEntry()) {
		assert.Equal(t, "daily@clinic", hook.LastEntry().Data["uid"])
	}
}

func parseOne(t *testing.T, body string) []vevent {
	vevents, errs, err := parse([]byte(strings.ReplaceAll(body, "\n", "\r\n")))
	require.NoError(t, err)
	require.Empty(t, errs)
	return vevents
}

func TestExpandUnboundedRule(t *testing.T) {
	vevents := parseOne(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Clinic//Schedule//EN
BEGIN:VEVENT
UID:forever@clinic
DTSTAMP:20240101T000000Z
DTSTART:20240101T080000Z
DTEND:20240101T080500Z
RRULE:FREQ=MINUTELY
END:VEVENT
END:VCALENDAR
`)
	x := expansion{
		entity:         42,
		r:              between(utc(1, 0, 0), time.Date(2124, time.January, 1, 0, 0, 0, 0, time.UTC)),
		maxOccurrences: 10,
	}
	events, truncated := x.expand(vevents)
	assert.Len(t, events, 10)
	assert.Equal(t, []string{"forever@clinic"}, truncated)
	if assert.NotEmpty(t, events) {
		assert.True(t, events[0].Start.Equal(utc(1, 8, 0)))
		assert.True(t, events[9].Start.Equal(utc(1, 8, 9)))
	}
}

func TestExpandRDates(t *testing.T) {
	vevents := parseOne(t, `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Clinic//Schedule//EN
BEGIN:VEVENT
UID:followup@clinic
DTSTAMP:20240101T000000Z
DTSTART:20240101T150000Z
DTEND:20240101T153000Z
RDATE:20240108T150000Z,20240115T150000Z
RDATE:20240122T150000Z
EXDATE:20240115T150000Z
END:VEVENT
END:VCALENDAR
`)
	if assert.Len(t, vevents, 1) {
		assert.Len(t, vevents[0].RDates, 3)
	}
	x := expansion{entity: 42, r: between(utc(1, 0, 0), utc(31, 0, 0)), maxOccurrences: 100}
	events, truncated := x.expand(vevents)
	assert.Empty(t, truncated)
	assert.Equal(t, []time.Time{
		utc(1, 15, 0),
		utc(8, 15, 0),
		utc(22, 15, 0),
	}, byUID(events)["followup@clinic"])
	for _, event := range events {
		assert.Equal(t, 30*time.Minute, event.End.Sub(event.Start))
	}
}
