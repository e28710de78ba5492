// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command schedcached runs a schedule event cache as an HTTP
// service.  It reads events from a backend (an in-memory store, a
// PostgreSQL database, or a set of iCalendar feeds), caches them per
// entity and time range, and serves them through the REST API in
// the restserver package.  Prometheus metrics are served on
// /metrics.
package main

import (
	"net/http"
	"os"

	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Could not load configuration")
		return
	}

	logger := logrus.StandardLogger()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Fatal("Invalid log level")
		return
	}
	logger.SetLevel(level)

	b, err := cfg.backend()
	if err != nil {
		logger.WithError(err).Fatal("Invalid backend")
		return
	}
	source, err := b.Source()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"err":     err,
			"backend": b.String(),
		}).Fatal("Could not create event backend")
		return
	}

	cacheConfig, err := cfg.cacheConfig(logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid cache configuration")
		return
	}
	c := cache.New(source, cacheConfig)

	// Writable backends notify the cache directly
	store, _ := source.(schedule.Store)
	if store != nil {
		store.Watch(c)
	}

	if cfg.Sweep != "" && cfg.MaxAge > 0 {
		sched, err := sweeper(cfg.Sweep, c, logger)
		if err != nil {
			logger.WithError(err).Fatal("Invalid sweep schedule")
			return
		}
		sched.Start()
		defer sched.Stop()
	}

	handler, err := newHandler(c, store, logger, cfg.LogRequests)
	if err != nil {
		logger.WithError(err).Fatal("Could not set up HTTP service")
		return
	}
	logger.WithFields(logrus.Fields{
		"http":    cfg.HTTP,
		"backend": b.String(),
		"per_day": cfg.PerDay,
	}).Info("Serving schedule cache")
	err = http.ListenAndServe(cfg.HTTP, handler)
	logger.WithError(err).Fatal("HTTP service failed")
}
