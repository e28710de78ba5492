// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient talks to the schedule cache REST server in the
// "restserver" package.
//
// The server in github.com/diffeo/go-schedcache/cmd/schedcached can
// run a compatible REST server.  Call New() with the base URL of that
// service; for instance,
//
//     c, err := restclient.New("http://localhost:5980/")
//
// A Client is also a schedule.EventSource, so a local cache can be
// layered on top of a remote one.
package restclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/restdata"
	"github.com/diffeo/go-schedcache/schedule"
)

// Client is a connection to a remote schedule cache.
type Client struct {
	resource
	Representation restdata.RootData
	location       *time.Location
}

// New creates a new client that speaks to an external REST server.
// It fetches the root document immediately, failing if that fails.
func New(baseURL string) (*Client, error) {
	return NewWithHTTPClient(baseURL, http.DefaultClient)
}

// NewWithHTTPClient creates a new client that makes its requests
// through a specific HTTP client.
func NewWithHTTPClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{resource: resource{URL: u, Client: hc}}
	if err = c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh re-reads the root document.
func (c *Client) Refresh() error {
	c.Representation = restdata.RootData{}
	err := c.Do(http.MethodGet, c.URL, nil, &c.Representation)
	if err != nil {
		return err
	}
	c.location, err = time.LoadLocation(c.Representation.Location)
	if err != nil {
		// Fall back to interpreting days in the caller's zone
		c.location = nil
	}
	return nil
}

// Location returns the time zone the server measures days in, or
// nil if the client could not resolve it.
func (c *Client) Location() *time.Location {
	return c.location
}

func (c *Client) dayVars(entity int64, day time.Time) map[string]interface{} {
	if c.location != nil {
		day = day.In(c.location)
	}
	return map[string]interface{}{
		"entity": restdata.EncodeID(entity),
		"day":    restdata.EncodeDay(day),
	}
}

func rangeVars(entity int64, from, to time.Time) map[string]interface{} {
	return map[string]interface{}{
		"entity": restdata.EncodeID(entity),
		"from":   restdata.EncodeTime(from),
		"to":     restdata.EncodeTime(to),
	}
}

func eventVars(id int64) map[string]interface{} {
	return map[string]interface{}{"event": restdata.EncodeID(id)}
}

func toResult(list restdata.EventList) cache.Result {
	return cache.Result{Events: list.ToEvents(), ModHash: list.ModHash}
}

// Events returns the events of an entity overlapping r.  This makes
// Client a schedule.EventSource.
func (c *Client) Events(entity int64, r schedule.Range) ([]schedule.Event, error) {
	result, err := c.Query(entity, r.From, r.To)
	return result.Events, err
}

// Query returns the events of an entity overlapping [from, to) along
// with their modification hash.
func (c *Client) Query(entity int64, from, to time.Time) (cache.Result, error) {
	var list restdata.EventList
	err := c.GetFrom(c.Representation.EventsURL, rangeVars(entity, from, to), &list)
	if err != nil {
		return cache.Result{}, err
	}
	return toResult(list), nil
}

// Day returns the events of an entity on the server-side day
// containing day.
func (c *Client) Day(entity int64, day time.Time) (cache.Result, error) {
	var list restdata.EventList
	err := c.GetFrom(c.Representation.DayURL, c.dayVars(entity, day), &list)
	if err != nil {
		return cache.Result{}, err
	}
	return toResult(list), nil
}

// Cached returns the events of an entity on a day only if the server
// already has them cached.  Otherwise the result carries
// schedule.UnknownModHash.
func (c *Client) Cached(entity int64, day time.Time) (cache.Result, bool, error) {
	var list restdata.EventList
	err := c.GetFrom(c.Representation.CachedURL, c.dayVars(entity, day), &list)
	if err != nil || !list.Cached {
		return cache.Result{ModHash: schedule.UnknownModHash}, false, err
	}
	return toResult(list), true, nil
}

// ModHash returns the modification hash of a range, or
// schedule.UnknownModHash if the server does not have all of it
// cached.
func (c *Client) ModHash(entity int64, from, to time.Time) (int64, error) {
	var mh restdata.ModHash
	err := c.GetFrom(c.Representation.ModHashURL, rangeVars(entity, from, to), &mh)
	if err != nil {
		return schedule.UnknownModHash, err
	}
	return mh.ModHash, nil
}

// Get fetches a single event.  This only works if the server has a
// writable store.
func (c *Client) Get(id int64) (schedule.Event, error) {
	var rep restdata.Event
	err := c.GetFrom(c.Representation.EventURL, eventVars(id), &rep)
	return rep.ToEvent(), err
}

// Put creates or updates an event, returning the event as the server
// recorded it.
func (c *Client) Put(event schedule.Event) (schedule.Event, error) {
	var in, out restdata.Event
	in.FromEvent(event)
	err := c.PutTo(c.Representation.EventURL, eventVars(event.ID), in, &out)
	if err != nil {
		return event, err
	}
	return out.ToEvent(), nil
}

// Remove deletes an event.  event should be the last known snapshot
// of the event; servers without a store pass it to their cache.
func (c *Client) Remove(event schedule.Event) error {
	var in restdata.Event
	in.FromEvent(event)
	return c.PostTo(c.Representation.RemoveEventURL, eventVars(event.ID), in, nil)
}

// Clear makes the server forget everything it has cached.
func (c *Client) Clear() error {
	return c.PostTo(c.Representation.ClearURL, map[string]interface{}{}, restdata.Empty{}, nil)
}

// Stats returns the server's cache counters.
func (c *Client) Stats() (cache.Stats, error) {
	var stats restdata.Stats
	err := c.GetFrom(c.Representation.StatsURL, map[string]interface{}{}, &stats)
	return cache.Stats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Loads:      stats.Loads,
		LoadErrors: stats.LoadErrors,
		Evictions:  stats.Evictions,
		Ranges:     stats.Ranges,
		Records:    stats.Records,
	}, err
}
