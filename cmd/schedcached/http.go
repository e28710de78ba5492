// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/restserver"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// newHandler builds the complete HTTP stack: the REST API, the
// metrics endpoint, and middleware for panics and request logging.
// store may be nil.
func newHandler(c *cache.Coordinator, store schedule.Store, logger *logrus.Logger, logRequests bool) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	if err := registerMetrics(registry, c); err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	restserver.PopulateRouter(r, restserver.Config{
		Cache:  c,
		Store:  store,
		Logger: logger,
	})

	recovery := negroni.NewRecovery()
	recovery.Logger = logger
	n := negroni.New(recovery)
	if logRequests {
		requests := negroni.NewLogger()
		requests.ALogger = logger
		n.Use(requests)
	}
	n.UseHandler(r)
	return n, nil
}
