// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package scheduletest provides generic functional tests for the
// schedule.Store interface.  A typical backend test module needs to
// wrap Suite to create its backend:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-schedcache/schedule"
//             "github.com/diffeo/go-schedcache/schedule/scheduletest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             scheduletest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             s.NewStore = func() schedule.Store { return New() }
//     }
//
//     // TestStore runs the schedule.Store generic tests.
//     func TestStore(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package scheduletest

import (
	"sync"
	"time"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic schedule.Store backend test suite.
type Suite struct {
	suite.Suite

	// NewStore creates an empty store.  It is set by importing
	// packages and called before every test.
	NewStore func() schedule.Store

	// Store is the store under test, fresh for every test.
	Store schedule.Store

	// Base is an arbitrary fixed time tests build events around.
	Base time.Time
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Base = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// SetupTest creates a fresh store.
func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.Store = s.NewStore()
}

// Hours returns a range starting from hours after Base and ending to
// hours after Base.
func (s *Suite) Hours(from, to float64) schedule.Range {
	return schedule.Range{
		From: s.Base.Add(time.Duration(from * float64(time.Hour))),
		To:   s.Base.Add(time.Duration(to * float64(time.Hour))),
	}
}

// Event builds an event in entity lasting over a range of hours past
// Base.
func (s *Suite) Event(id, entity int64, from, to float64) schedule.Event {
	r := s.Hours(from, to)
	return schedule.Event{
		ID:       id,
		Entity:   entity,
		Start:    r.From,
		End:      r.To,
		Version:  1,
		Versions: schedule.NewVersions(1, 1, 1, 1, 1),
	}
}

// Put stores an event, failing the test if that fails.
func (s *Suite) Put(event schedule.Event) schedule.Event {
	stored, err := s.Store.Put(event)
	s.Require().NoError(err)
	return stored
}

// IDs queries a range and returns the IDs found, in no particular
// order.
func (s *Suite) IDs(entity int64, r schedule.Range) []int64 {
	events, err := s.Store.Events(entity, r)
	s.Require().NoError(err)
	ids := make([]int64, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}
	return ids
}

// TestPutGet checks that a stored event can be read back.
func (s *Suite) TestPutGet() {
	s.Put(s.Event(1, 42, 10, 11))

	event, err := s.Store.Get(1)
	if s.NoError(err) {
		s.Equal(int64(1), event.ID)
		s.Equal(int64(42), event.Entity)
		s.True(event.Start.Equal(s.Base.Add(10 * time.Hour)))
		s.True(event.End.Equal(s.Base.Add(11 * time.Hour)))
		s.Equal(schedule.NewVersions(1, 1, 1, 1, 1), event.Versions)
	}

	_, err = s.Store.Get(2)
	s.Equal(schedule.ErrNoSuchEvent{ID: 2}, err)
}

// TestPutBadEvent checks that events without IDs are rejected.
func (s *Suite) TestPutBadEvent() {
	_, err := s.Store.Put(s.Event(0, 42, 10, 11))
	s.IsType(schedule.ErrBadEvent{}, err)
}

// TestRangeFiltering checks the half-open overlap rule.
func (s *Suite) TestRangeFiltering() {
	s.Put(s.Event(1, 42, 10, 11))

	s.ElementsMatch([]int64{1}, s.IDs(42, s.Hours(9, 10.5)))
	s.ElementsMatch([]int64{1}, s.IDs(42, s.Hours(10.5, 11.5)))
	s.Empty(s.IDs(42, s.Hours(11, 12)))
	s.Empty(s.IDs(42, s.Hours(8, 9)))
	s.Empty(s.IDs(43, s.Hours(9, 12)))
}

// TestBadRange checks that an empty range is an error.
func (s *Suite) TestBadRange() {
	_, err := s.Store.Events(42, s.Hours(10, 10))
	s.Equal(schedule.ErrBadRange, err)
}

// TestVersionBump checks that rewriting an event without raising its
// version still produces a newer version.
func (s *Suite) TestVersionBump() {
	first := s.Put(s.Event(1, 42, 10, 11))
	second := s.Put(s.Event(1, 42, 12, 13))
	s.True(second.Version > first.Version)

	third := s.Event(1, 42, 12, 13)
	third.Version = second.Version + 10
	stored := s.Put(third)
	s.Equal(third.Version, stored.Version)

	s.Empty(s.IDs(42, s.Hours(10, 11)))
	s.ElementsMatch([]int64{1}, s.IDs(42, s.Hours(12, 13)))
}

// TestDelete checks deleting events.
func (s *Suite) TestDelete() {
	s.Put(s.Event(1, 42, 10, 11))
	s.Put(s.Event(2, 42, 10, 11))

	s.NoError(s.Store.Delete(1))
	s.ElementsMatch([]int64{2}, s.IDs(42, s.Hours(0, 24)))
	s.Equal(schedule.ErrNoSuchEvent{ID: 1}, s.Store.Delete(1))
}

// recorder is a schedule.Listener that remembers what it was told.
type recorder struct {
	lock    sync.Mutex
	added   []schedule.Event
	removed []schedule.Event
}

func (r *recorder) AddEvent(source interface{}) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.added = append(r.added, source.(schedule.Event))
	return nil
}

func (r *recorder) RemoveEvent(source interface{}) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.removed = append(r.removed, source.(schedule.Event))
	return nil
}

// TestListeners checks that writes are reported to listeners.
func (s *Suite) TestListeners() {
	r := &recorder{}
	s.Store.Watch(r)

	stored := s.Put(s.Event(1, 42, 10, 11))
	s.NoError(s.Store.Delete(1))
	s.Equal(schedule.ErrNoSuchEvent{ID: 1}, s.Store.Delete(1))

	if s.Len(r.added, 1) {
		s.Equal(stored.ID, r.added[0].ID)
		s.Equal(stored.Version, r.added[0].Version)
	}
	if s.Len(r.removed, 1) {
		s.Equal(int64(1), r.removed[0].ID)
	}
}
