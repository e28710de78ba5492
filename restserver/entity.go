// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/restdata"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/gorilla/mux"
)

// PopulateEntity adds the per-entity query routes.
func (api *restAPI) PopulateEntity(r *mux.Router) {
	r.Path("/entity/{entity}/events").Name("events").Handler(api.handler(resourceHandler{
		Representation: restdata.EventList{},
		Get:            api.EventsGet,
	}))
	r.Path("/entity/{entity}/day/{day}").Name("day").Handler(api.handler(resourceHandler{
		Representation: restdata.EventList{},
		Get:            api.DayGet,
	}))
	r.Path("/entity/{entity}/day/{day}/cached").Name("cached").Handler(api.handler(resourceHandler{
		Representation: restdata.EventList{},
		Get:            api.CachedGet,
	}))
	r.Path("/entity/{entity}/modhash").Name("modHash").Handler(api.handler(resourceHandler{
		Representation: restdata.ModHash{},
		Get:            api.ModHashGet,
	}))
}

func (api *restAPI) eventList(result cache.Result) (restdata.EventList, error) {
	list := restdata.EventList{}
	list.FromEvents(result.Events, result.ModHash)
	for i := range list.Events {
		err := api.fillEventURL(&list.Events[i])
		if err != nil {
			return list, err
		}
	}
	return list, nil
}

// EventsGet returns the events overlapping the from/to query range,
// loading whatever is not cached.
func (api *restAPI) EventsGet(ctx *context) (interface{}, error) {
	r, err := ctx.Range()
	if err != nil {
		return nil, err
	}
	result, err := api.Cache.EventsBetween(ctx.Entity, r.From, r.To)
	if err != nil {
		return nil, err
	}
	return api.eventList(result)
}

// DayGet returns the events of a whole day.
func (api *restAPI) DayGet(ctx *context) (interface{}, error) {
	result, err := api.Cache.Events(ctx.Entity, ctx.Day)
	if err != nil {
		return nil, err
	}
	return api.eventList(result)
}

// CachedGet returns the events of a whole day if that day is already
// cached, and an empty list with Cached false and an unknown
// modification hash otherwise.
func (api *restAPI) CachedGet(ctx *context) (interface{}, error) {
	result, cached := api.Cache.Cached(ctx.Entity, ctx.Day)
	if !cached {
		return restdata.EventList{
			Events:  []restdata.Event{},
			ModHash: schedule.UnknownModHash,
		}, nil
	}
	list, err := api.eventList(result)
	list.Cached = true
	return list, err
}

// ModHashGet returns the modification hash of the from/to query
// range without loading anything.
func (api *restAPI) ModHashGet(ctx *context) (interface{}, error) {
	r, err := ctx.Range()
	if err != nil {
		return nil, err
	}
	return restdata.ModHash{
		ModHash: api.Cache.ModHashBetween(ctx.Entity, r.From, r.To),
	}, nil
}
