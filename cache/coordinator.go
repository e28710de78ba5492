// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides an in-process cache of schedule events.  The
// cache sits in front of some schedule.EventSource, answering "which
// events does entity E have during [from, to)" from memory, and is
// kept current by change notifications delivered through AddEvent
// and RemoveEvent.
//
// Structure
//
// Each cached (entity, range) pair is a range cache, loaded from the
// event source on first use.  At most one load per pair runs at a
// time; concurrent readers of the same pair wait for it and share its
// result.  Failed loads are not remembered.  Range caches of one
// entity are grouped so a notification reaches every range the event
// might appear in.  Every event is represented by exactly one shared
// record, which reconciles snapshots by version.
//
// A range cache is registered to receive notifications before its
// load starts.  Notifications that arrive while the load is running
// are queued and replayed after it, so nothing that happens during a
// load is lost.
//
// The cache can either cache whole days and assemble arbitrary ranges
// from them (Config.PerDay) or cache each requested range as its own
// unit.  This is fixed when the Coordinator is created.
//
// Memory
//
// Range caches live in an LRU with a fixed capacity and an optional
// maximum age.  A range cache that falls out of the LRU is detached
// from its entity, and event records are forgotten once no range
// cache refers to them.
//
// Caveats
//
// If a removal notification for an event overtakes the addition of
// the same event, for instance because they come from different
// processes, the removal finds nothing to remove and the addition
// then caches a deleted event.  Nothing here detects this.  The stale
// event goes away when its range is reloaded, so Config.MaxAge bounds
// how long it can be visible.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxRanges is the LRU capacity used if Config.MaxRanges is
// not set.
const DefaultMaxRanges = 4096

// Config holds the construction-time settings of a Coordinator.
type Config struct {
	// PerDay selects per-day caching: every range query is
	// answered by combining whole-day range caches.  Otherwise each
	// distinct range is cached and loaded on its own.
	PerDay bool

	// Location sets where day boundaries fall.  Defaults to
	// time.Local.
	Location *time.Location

	// MaxRanges is the maximum number of range caches kept.
	MaxRanges int

	// MaxAge is how long a range cache may be used after it was
	// loaded.  Zero means forever.
	MaxAge time.Duration

	// Factory converts values passed to AddEvent and RemoveEvent
	// into events.  Defaults to schedule.DefaultFactory.
	Factory schedule.Factory

	// Clock is the time source for MaxAge.  Defaults to the real
	// clock.
	Clock clock.Clock

	// Logger receives load failures and evictions.  Defaults to
	// the logrus standard logger.
	Logger logrus.FieldLogger
}

// Result is the answer to a range query.
type Result struct {
	// Events holds the events in the range, sorted by start time
	// and then ID.
	Events []schedule.Event

	// ModHash changes whenever the set of events might have
	// changed.
	ModHash int64
}

// Stats holds running counters for a Coordinator.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Loads      uint64
	LoadErrors uint64
	Evictions  uint64
	Ranges     int
	Records    int
}

// generation is all of the cached state.  Clear replaces the whole
// thing at once.
type generation struct {
	lru      *lru
	flight   singleflight.Group
	registry *registry
	lock     sync.Mutex
	entities map[int64]*entityCache
}

// register attaches a range cache to its entity, creating the entity
// cache if needed.
func (g *generation) register(rc *rangeCache) {
	g.lock.Lock()
	defer g.lock.Unlock()
	ec, present := g.entities[rc.entity]
	if !present {
		ec = newEntityCache(rc.entity)
		g.entities[rc.entity] = ec
	}
	ec.register(rc)
}

// unregister detaches a range cache from its entity, dropping the
// entity cache once it is empty.
func (g *generation) unregister(rc *rangeCache) {
	g.lock.Lock()
	defer g.lock.Unlock()
	ec := rc.owner
	if ec == nil {
		return
	}
	if ec.unregister(rc) && g.entities[ec.id] == ec {
		delete(g.entities, ec.id)
	}
}

// entity finds the entity cache for an ID, or nil.
func (g *generation) entity(id int64) *entityCache {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.entities[id]
}

// Coordinator is the schedule event cache.  It is safe for concurrent
// use.  It implements schedule.Listener, so it can be registered
// directly with backends that send change notifications.
type Coordinator struct {
	source schedule.EventSource
	config Config

	lock sync.RWMutex
	gen  *generation

	hits       atomic.Uint64
	misses     atomic.Uint64
	loads      atomic.Uint64
	loadErrors atomic.Uint64
	evictions  atomic.Uint64
}

// New creates a new Coordinator reading from some event source.
func New(source schedule.EventSource, config Config) *Coordinator {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.MaxRanges <= 0 {
		config.MaxRanges = DefaultMaxRanges
	}
	if config.Factory == nil {
		config.Factory = schedule.DefaultFactory
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	c := &Coordinator{source: source, config: config}
	c.gen = c.newGeneration()
	return c
}

func (c *Coordinator) newGeneration() *generation {
	g := &generation{
		registry: newRegistry(),
		entities: make(map[int64]*entityCache),
	}
	g.lru = newLRU(c.config.MaxRanges, c.config.MaxAge, c.config.Clock, func(item keyed) {
		rc := item.(*rangeCache)
		c.evictions.Add(1)
		g.unregister(rc)
		rc.close()
		c.config.Logger.WithFields(logrus.Fields{
			"entity": rc.entity,
			"from":   rc.from,
			"to":     rc.to,
		}).Debug("Evicted range cache")
	})
	return g
}

func (c *Coordinator) current() *generation {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.gen
}

// PerDay returns whether this uses per-day caching.
func (c *Coordinator) PerDay() bool {
	return c.config.PerDay
}

// Location returns the time zone day boundaries are computed in.
func (c *Coordinator) Location() *time.Location {
	return c.config.Location
}

// rangeCache finds or loads the range cache for a key.
func (c *Coordinator) rangeCache(g *generation, entity int64, r schedule.Range) (*rangeCache, error) {
	key := schedule.NewKey(entity, r)
	if item := g.lru.Get(key); item != nil {
		c.hits.Add(1)
		return item.(*rangeCache), nil
	}
	c.misses.Add(1)
	item, err, _ := g.flight.Do(key.String(), func() (interface{}, error) {
		// Another load may have finished between the Get and
		// here
		if item := g.lru.Peek(key); item != nil {
			return item, nil
		}
		return c.load(g, entity, r)
	})
	if err != nil {
		return nil, err
	}
	return item.(*rangeCache), nil
}

// load creates, registers, and populates a new range cache.  This
// runs at most once at a time per key.
func (c *Coordinator) load(g *generation, entity int64, r schedule.Range) (*rangeCache, error) {
	rc := newRangeCache(entity, r, g.registry)

	// Register first, so that notifications arriving while the
	// source is being read get queued
	g.register(rc)
	rc.beginPopulate()

	events, err := c.source.Events(entity, r)
	if err != nil {
		c.loadErrors.Add(1)
		g.unregister(rc)
		rc.close()
		c.config.Logger.WithFields(logrus.Fields{
			"entity": entity,
			"from":   r.From,
			"to":     r.To,
			"err":    err,
		}).Warn("Could not load events")
		return nil, err
	}

	records := make([]*record, 0, len(events))
	for _, event := range events {
		if err := event.Validate(); err != nil {
			c.config.Logger.WithFields(logrus.Fields{
				"entity": entity,
				"err":    err,
			}).Warn("Skipping invalid event from source")
			continue
		}
		rec, created := g.registry.acquire(event)
		if !created {
			rec.update(event)
		}
		records = append(records, rec)
	}
	rc.populate(records)
	c.loads.Add(1)
	g.lru.Put(rc)
	return rc, nil
}

// Events returns the events of an entity on the day containing day.
func (c *Coordinator) Events(entity int64, day time.Time) (Result, error) {
	r := schedule.Day(day, c.config.Location)
	return c.EventsBetween(entity, r.From, r.To)
}

// EventsBetween returns the events of an entity that overlap
// [from, to), loading whatever is not already cached.  Any load
// error is returned as is.
func (c *Coordinator) EventsBetween(entity int64, from, to time.Time) (Result, error) {
	r := schedule.Range{From: from, To: to}
	if !r.Valid() {
		return Result{}, schedule.ErrBadRange
	}
	g := c.current()

	if !c.config.PerDay {
		rc, err := c.rangeCache(g, entity, r)
		if err != nil {
			return Result{}, err
		}
		events, modHash := rc.snapshot()
		return Result{Events: events, ModHash: modHash}, nil
	}

	result := Result{Events: []schedule.Event{}}
	seen := make(map[int64]struct{})
	var hash uint64
	for day := schedule.Day(from, c.config.Location); day.From.Before(to); day = schedule.Day(day.To, c.config.Location) {
		rc, err := c.rangeCache(g, entity, day)
		if err != nil {
			return Result{}, err
		}
		events, modHash := rc.snapshot()
		hash += mixHash(day.From, modHash)
		for _, event := range events {
			if !event.Start.Before(to) {
				break
			}
			if _, dup := seen[event.ID]; dup || !event.Intersects(from, to) {
				continue
			}
			seen[event.ID] = struct{}{}
			result.Events = append(result.Events, event)
		}
	}
	result.ModHash = finishHash(hash)
	return result, nil
}

// ModHash returns the modification hash for an entity on the day
// containing day, or schedule.UnknownModHash if it is not cached.
func (c *Coordinator) ModHash(entity int64, day time.Time) int64 {
	r := schedule.Day(day, c.config.Location)
	return c.ModHashBetween(entity, r.From, r.To)
}

// ModHashBetween returns the modification hash that EventsBetween
// would return, without loading anything.  If any part of the range is
// not cached, returns schedule.UnknownModHash.
func (c *Coordinator) ModHashBetween(entity int64, from, to time.Time) int64 {
	r := schedule.Range{From: from, To: to}
	if !r.Valid() {
		return schedule.UnknownModHash
	}
	g := c.current()

	if !c.config.PerDay {
		item := g.lru.Peek(schedule.NewKey(entity, r))
		if item == nil {
			return schedule.UnknownModHash
		}
		return item.(*rangeCache).currentModHash()
	}

	var hash uint64
	for day := schedule.Day(from, c.config.Location); day.From.Before(to); day = schedule.Day(day.To, c.config.Location) {
		item := g.lru.Peek(schedule.NewKey(entity, day))
		if item == nil {
			return schedule.UnknownModHash
		}
		hash += mixHash(day.From, item.(*rangeCache).currentModHash())
	}
	return finishHash(hash)
}

// Cached returns the events of an entity on the day containing day,
// but only if they are already cached.  This never loads anything.
func (c *Coordinator) Cached(entity int64, day time.Time) (Result, bool) {
	r := schedule.Day(day, c.config.Location)
	item := c.current().lru.Peek(schedule.NewKey(entity, r))
	if item == nil {
		return Result{}, false
	}
	rc := item.(*rangeCache)
	events, modHash := rc.snapshot()
	if c.config.PerDay {
		modHash = finishHash(mixHash(r.From, modHash))
	}
	return Result{Events: events, ModHash: modHash}, true
}

// AddEvent records that an event was created or updated.  source is
// converted by the configured factory.  The new snapshot is merged
// into the shared record for the event and offered to every cached
// range of its entity.  If the event used to belong to a different
// entity, it is withdrawn from that entity's ranges.
func (c *Coordinator) AddEvent(source interface{}) error {
	event, err := c.config.Factory.Event(source)
	if err != nil {
		return err
	}
	g := c.current()
	rec, prior := c.merge(g, event)
	defer g.registry.release(rec)

	current := rec.snapshot()
	if ec := g.entity(current.Entity); ec != nil {
		ec.dispatchAdd(rec)
	}
	if prior != nil && prior.Entity != current.Entity {
		if ec := g.entity(prior.Entity); ec != nil {
			ec.dispatchDrop(rec)
		}
	}
	return nil
}

// RemoveEvent records that an event was deleted.  source is
// converted by the configured factory, merged into the shared record
// for the event, and the event is withdrawn from every cached range
// of its entity.
func (c *Coordinator) RemoveEvent(source interface{}) error {
	event, err := c.config.Factory.Event(source)
	if err != nil {
		return err
	}
	g := c.current()
	rec, prior := c.merge(g, event)
	defer g.registry.release(rec)

	current := rec.snapshot()
	if ec := g.entity(current.Entity); ec != nil {
		ec.dispatchRemove(rec)
	}
	if event.Entity != current.Entity {
		if ec := g.entity(event.Entity); ec != nil {
			ec.dispatchDrop(rec)
		}
	}
	if prior != nil && prior.Entity != current.Entity && prior.Entity != event.Entity {
		if ec := g.entity(prior.Entity); ec != nil {
			ec.dispatchDrop(rec)
		}
	}
	return nil
}

// merge finds or creates the record for an event and merges the
// event into it.  It returns the record with a reference the caller
// must release, and the snapshot the record held before, if it
// already existed.
func (c *Coordinator) merge(g *generation, event schedule.Event) (*record, *schedule.Event) {
	rec, created := g.registry.acquire(event)
	if created {
		return rec, nil
	}
	prior := rec.snapshot()
	rec.update(event)
	return rec, &prior
}

// Clear forgets everything: every cached range, every entity
// grouping, and every event record.  Loads already in progress
// complete but their results are discarded.
func (c *Coordinator) Clear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.gen = c.newGeneration()
}

// Sweep drops every range cache older than Config.MaxAge, returning
// the number dropped.  Stale range caches are also dropped lazily on
// access; Sweep just reclaims the memory of ranges nobody asks for.
func (c *Coordinator) Sweep() int {
	return c.current().lru.Expire()
}

// Stats returns a snapshot of the running counters.
func (c *Coordinator) Stats() Stats {
	g := c.current()
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Loads:      c.loads.Load(),
		LoadErrors: c.loadErrors.Load(),
		Evictions:  c.evictions.Load(),
		Ranges:     g.lru.Len(),
		Records:    g.registry.Len(),
	}
}

// mixHash scrambles one day's modification counter together with the
// day itself.  Summing these gives an aggregate that does not depend
// on the order days are visited in.
func mixHash(day time.Time, modHash int64) uint64 {
	x := uint64(day.UnixNano())*0x9e3779b97f4a7c15 ^ uint64(modHash)
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// finishHash turns an aggregate into a modification hash, steering
// clear of the sentinel value.
func finishHash(hash uint64) int64 {
	result := int64(hash)
	if result == schedule.UnknownModHash {
		result = 0
	}
	return result
}
