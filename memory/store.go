// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// schedule.Store.  There is no persistence on this store, nor is
// there any automatic sharing.  The entire store is behind a single
// lock.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of the cache
// in front of it.  It is generally tuned for correctness, not
// performance or scalability.
package memory

import (
	"sync"

	"github.com/diffeo/go-schedcache/schedule"
)

// Store is an in-memory event store.
type Store struct {
	lock      sync.Mutex
	events    map[int64]schedule.Event
	listeners []schedule.Listener
	queries   int
}

// New creates a new, empty in-memory store.
func New() *Store {
	return &Store{events: make(map[int64]schedule.Event)}
}

// Events returns the events of one entity that overlap a range, in
// no particular order.
func (s *Store) Events(entity int64, r schedule.Range) ([]schedule.Event, error) {
	if !r.Valid() {
		return nil, schedule.ErrBadRange
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.queries++
	var result []schedule.Event
	for _, event := range s.events {
		if event.Entity == entity && event.Intersects(r.From, r.To) {
			result = append(result, event)
		}
	}
	return result, nil
}

// Get retrieves one event.
func (s *Store) Get(id int64) (schedule.Event, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	event, present := s.events[id]
	if !present {
		return event, schedule.ErrNoSuchEvent{ID: id}
	}
	return event, nil
}

// Put creates or replaces an event, then notifies listeners.  If a
// listener fails, the write still happened; the first listener error
// is returned.
func (s *Store) Put(event schedule.Event) (schedule.Event, error) {
	if err := event.Validate(); err != nil {
		return event, err
	}

	s.lock.Lock()
	if old, present := s.events[event.ID]; present && event.Version <= old.Version {
		event.Version = old.Version + 1
	}
	s.events[event.ID] = event
	listeners := s.listeners
	s.lock.Unlock()

	var err error
	for _, listener := range listeners {
		if lerr := listener.AddEvent(event); lerr != nil && err == nil {
			err = lerr
		}
	}
	return event, err
}

// Delete removes an event, then notifies listeners.
func (s *Store) Delete(id int64) error {
	s.lock.Lock()
	event, present := s.events[id]
	if !present {
		s.lock.Unlock()
		return schedule.ErrNoSuchEvent{ID: id}
	}
	delete(s.events, id)
	listeners := s.listeners
	s.lock.Unlock()

	var err error
	for _, listener := range listeners {
		if lerr := listener.RemoveEvent(event); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}

// Watch adds a listener.
func (s *Store) Watch(listener schedule.Listener) {
	s.lock.Lock()
	defer s.lock.Unlock()
	// Copy so notifications in flight keep their own slice
	listeners := make([]schedule.Listener, len(s.listeners), len(s.listeners)+1)
	copy(listeners, s.listeners)
	s.listeners = append(listeners, listener)
}

// Queries returns the number of times Events has been called.
func (s *Store) Queries() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.queries
}
