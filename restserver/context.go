// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/diffeo/go-schedcache/restdata"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/gorilla/mux"
)

// errUnmarshal is returned if the put/post contract is violated and
// a handler function is passed the wrong type.
var errUnmarshal = restdata.ErrBadRequest{
	Err: errors.New("Invalid input format"),
}

// context holds everything that can be extracted from URL
// parameters.
type context struct {
	Entity      int64
	Event       int64
	Day         time.Time
	QueryParams url.Values
}

func badParam(name, value string, err error) error {
	return restdata.ErrBadRequest{
		Err: fmt.Errorf("Invalid %v %q: %v", name, value, err),
	}
}

func (api *restAPI) Context(req *http.Request) (ctx *context, err error) {
	ctx = &context{}
	ctx.QueryParams = req.URL.Query()
	vars := mux.Vars(req)

	if entity, present := vars["entity"]; present && err == nil {
		ctx.Entity, err = restdata.DecodeID(entity)
		if err != nil {
			err = badParam("entity", entity, err)
		}
	}

	if event, present := vars["event"]; present && err == nil {
		ctx.Event, err = restdata.DecodeID(event)
		if err != nil {
			err = badParam("event", event, err)
		}
	}

	if day, present := vars["day"]; present && err == nil {
		ctx.Day, err = restdata.DecodeDay(day, api.Cache.Location())
		if err != nil {
			err = badParam("day", day, err)
		}
	}

	return
}

// Range reads the "from" and "to" query parameters.  Both are
// required, and from must be before to.
func (ctx *context) Range() (r schedule.Range, err error) {
	for _, p := range []struct {
		name string
		out  *time.Time
	}{{"from", &r.From}, {"to", &r.To}} {
		value := ctx.QueryParams.Get(p.name)
		if value == "" {
			return r, restdata.ErrBadRequest{
				Err: fmt.Errorf("Missing %v parameter", p.name),
			}
		}
		*p.out, err = restdata.DecodeTime(value)
		if err != nil {
			return r, badParam(p.name, value, err)
		}
	}
	if !r.Valid() {
		return r, restdata.ErrBadRequest{Err: schedule.ErrBadRange}
	}
	return r, nil
}
