// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/restdata"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Config describes what the REST API publishes.
type Config struct {
	// Cache answers all of the read requests.
	Cache *cache.Coordinator

	// Store, if non-nil, receives event writes; it is expected
	// to notify Cache itself.  If nil, writes are passed straight
	// to Cache as change notifications.
	Store schedule.Store

	// Logger receives failed requests.  Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

// NewRouter creates a new HTTP handler that processes all cache
// requests.  All resources are under the URL path root, e.g.
// /entity/42/day/2024-01-01.  For more control over this setup,
// create a mux.Router and call PopulateRouter instead.
func NewRouter(config Config) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, config)
	return r
}

// PopulateRouter adds the cache routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the interface under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/schedule").Subrouter()
//     PopulateRouter(s, restserver.Config{Cache: c})
func PopulateRouter(r *mux.Router, config Config) {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	api := &restAPI{
		Cache:  config.Cache,
		Store:  config.Store,
		Logger: config.Logger,
		Router: r,
	}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the REST API.
type restAPI struct {
	Cache  *cache.Coordinator
	Store  schedule.Store
	Logger logrus.FieldLogger
	Router *mux.Router
}

func (api *restAPI) handler(h resourceHandler) *resourceHandler {
	h.Context = api.Context
	h.Logger = api.Logger
	return &h
}

// PopulateRouter adds all URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	api.PopulateEntity(r)
	api.PopulateEvent(r)
	r.Path("/clear").Name("clear").Handler(api.handler(resourceHandler{
		Representation: restdata.Empty{},
		Post:           api.ClearPost,
	}))
	r.Path("/stats").Name("stats").Handler(api.handler(resourceHandler{
		Representation: restdata.Stats{},
		Get:            api.StatsGet,
	}))
	r.Path("/").Name("root").Handler(api.handler(resourceHandler{
		Representation: restdata.RootData{},
		Get:            api.RootDocument,
	}))
}

func (api *restAPI) RootDocument(ctx *context) (interface{}, error) {
	resp := restdata.RootData{
		PerDay:   api.Cache.PerDay(),
		Location: api.Cache.Location().String(),
	}
	rangeQuery := []string{"from", "to"}
	err := buildURLs(api.Router).
		URL(&resp.URL, "root").
		QueryTemplate(&resp.EventsURL, "events", rangeQuery, "entity").
		Template(&resp.DayURL, "day", "entity", "day").
		Template(&resp.CachedURL, "cached", "entity", "day").
		QueryTemplate(&resp.ModHashURL, "modHash", rangeQuery, "entity").
		Template(&resp.EventURL, "event", "event").
		Template(&resp.RemoveEventURL, "removeEvent", "event").
		URL(&resp.ClearURL, "clear").
		URL(&resp.StatsURL, "stats").
		Error
	return resp, err
}

// ClearPost forgets everything cached.
func (api *restAPI) ClearPost(ctx *context, in interface{}) (interface{}, error) {
	api.Cache.Clear()
	api.Logger.Info("Cache cleared")
	return nil, nil
}

// StatsGet returns the cache counters.
func (api *restAPI) StatsGet(ctx *context) (interface{}, error) {
	stats := api.Cache.Stats()
	return restdata.Stats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Loads:      stats.Loads,
		LoadErrors: stats.LoadErrors,
		Evictions:  stats.Evictions,
		Ranges:     stats.Ranges,
		Records:    stats.Records,
	}, nil
}
