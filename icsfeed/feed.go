// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package icsfeed provides a read-only schedule.EventSource over
// iCalendar (RFC 5545) feeds.  Each feed, a local file or an HTTP(S)
// URL, supplies the events of one schedule entity.  Recurring events
// are expanded into one event per instance, honoring EXDATE and
// RECURRENCE-ID overrides.
//
// Every instance gets a stable ID derived from its UID and original
// start time, and its SEQUENCE as its version.  Since feeds cannot
// send change notifications, a cache in front of a Source should set
// a maximum age so that feed changes are eventually picked up.
package icsfeed

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/sirupsen/logrus"
)

// Config holds the settings of a Source.
type Config struct {
	// Feeds maps entity IDs to feed locations.  A location
	// containing "://" is fetched over HTTP, anything else is read
	// as a file.
	Feeds map[int64]string

	// MaxOccurrences caps the number of instances produced for one
	// recurring event in one query.  Defaults to
	// DefaultMaxOccurrences.
	MaxOccurrences int

	// Client fetches HTTP feeds.  Defaults to a client with a 15
	// second timeout.
	Client *http.Client

	// Logger receives warnings about unusable events.  Defaults to
	// the logrus standard logger.
	Logger logrus.FieldLogger
}

// Source reads events from iCalendar feeds.  It fetches and parses
// the feed on every call; put a cache in front of it.
type Source struct {
	config Config
}

// New creates a new feed source.
func New(config Config) *Source {
	if config.Feeds == nil {
		config.Feeds = make(map[int64]string)
	}
	if config.MaxOccurrences <= 0 {
		config.MaxOccurrences = DefaultMaxOccurrences
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &Source{config: config}
}

// Entities returns the entity IDs that have feeds.
func (s *Source) Entities() []int64 {
	result := make([]int64, 0, len(s.config.Feeds))
	for entity := range s.config.Feeds {
		result = append(result, entity)
	}
	return result
}

// Events fetches the feed of an entity and returns the instances that
// intersect a range.
func (s *Source) Events(entity int64, r schedule.Range) ([]schedule.Event, error) {
	if !r.Valid() {
		return nil, schedule.ErrBadRange
	}
	location, present := s.config.Feeds[entity]
	if !present {
		return nil, ErrNoSuchFeed{Entity: entity}
	}
	logger := s.config.Logger.WithFields(logrus.Fields{
		"entity": entity,
		"feed":   location,
	})

	body, err := s.fetch(location)
	if err != nil {
		return nil, err
	}
	vevents, errs, err := parse(body)
	if err != nil {
		return nil, err
	}
	for _, err := range errs {
		logger.WithField("err", err).Warn("Skipping calendar event")
	}

	x := expansion{entity: entity, r: r, maxOccurrences: s.config.MaxOccurrences}
	events, truncated := x.expand(vevents)
	for _, uid := range truncated {
		logger.WithFields(logrus.Fields{
			"uid": uid,
			"max": s.config.MaxOccurrences,
		}).Warn("Too many occurrences of recurring event")
	}
	return events, nil
}

// fetch reads the contents of a feed.
func (s *Source) fetch(location string) ([]byte, error) {
	if !strings.Contains(location, "://") {
		return os.ReadFile(location)
	}
	req, err := http.NewRequest("GET", location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")
	resp, err := s.config.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrHTTPStatus{URL: location, Status: resp.Status}
	}
	return io.ReadAll(resp.Body)
}
