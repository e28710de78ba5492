// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"

	"github.com/diffeo/go-schedcache/restdata"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// errNoStore is returned from reading a single event when there is
// no store to read it from.
type errNoStore struct{}

func (errNoStore) Error() string {
	return "Events cannot be fetched individually from this backend"
}

func (errNoStore) HTTPStatus() int {
	return http.StatusNotImplemented
}

// PopulateEvent adds the per-event routes.
func (api *restAPI) PopulateEvent(r *mux.Router) {
	r.Path("/event/{event}").Name("event").Handler(api.handler(resourceHandler{
		Representation: restdata.Event{},
		Get:            api.EventGet,
		Put:            api.EventPut,
	}))
	r.Path("/event/{event}/remove").Name("removeEvent").Handler(api.handler(resourceHandler{
		Representation: restdata.Event{},
		Post:           api.EventRemove,
	}))
}

func (api *restAPI) fillEventURL(event *restdata.Event) error {
	return buildURLs(api.Router, "event", restdata.EncodeID(event.ID)).
		URL(&event.URL, "event").
		Error
}

func (api *restAPI) eventRep(event schedule.Event) (interface{}, error) {
	rep := restdata.Event{}
	rep.FromEvent(event)
	err := api.fillEventURL(&rep)
	return rep, err
}

// eventFromBody converts a request body into an event, taking the ID
// from the URL if the body does not have one.
func eventFromBody(ctx *context, in interface{}) (schedule.Event, error) {
	rep, valid := in.(restdata.Event)
	if !valid {
		return schedule.Event{}, errUnmarshal
	}
	if rep.ID == 0 {
		rep.ID = ctx.Event
	}
	if rep.ID != ctx.Event {
		return schedule.Event{}, restdata.ErrBadRequest{
			Err: errors.New("Event ID does not match URL"),
		}
	}
	return rep.ToEvent(), nil
}

// EventGet fetches a single event from the store.
func (api *restAPI) EventGet(ctx *context) (interface{}, error) {
	if api.Store == nil {
		return nil, errNoStore{}
	}
	event, err := api.Store.Get(ctx.Event)
	if err != nil {
		return nil, err
	}
	return api.eventRep(event)
}

// EventPut creates or updates an event.  With a store this writes
// through it and returns the stored event; otherwise this is a
// change notification to the cache.
func (api *restAPI) EventPut(ctx *context, in interface{}) (interface{}, error) {
	event, err := eventFromBody(ctx, in)
	if err != nil {
		return nil, err
	}
	if api.Store != nil {
		event, err = api.Store.Put(event)
	} else {
		err = api.Cache.AddEvent(event)
	}
	if err != nil {
		return nil, err
	}
	api.Logger.WithFields(logrus.Fields{
		"event":   event.ID,
		"entity":  event.Entity,
		"version": event.Version,
	}).Debug("Event updated")
	return api.eventRep(event)
}

// EventRemove deletes an event.  With a store the body is ignored
// beyond its ID; otherwise the body is the last known snapshot of the
// event and is passed to the cache as a change notification.
func (api *restAPI) EventRemove(ctx *context, in interface{}) (interface{}, error) {
	event, err := eventFromBody(ctx, in)
	if err != nil {
		return nil, err
	}
	if api.Store != nil {
		err = api.Store.Delete(event.ID)
	} else {
		err = api.Cache.RemoveEvent(event)
	}
	if err != nil {
		return nil, err
	}
	api.Logger.WithField("event", event.ID).Debug("Event removed")
	return nil, nil
}
