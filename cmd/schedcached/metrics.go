// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"github.com/diffeo/go-schedcache/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// registerMetrics publishes the cache counters on a registry.  The
// values are read from the cache on every scrape.
func registerMetrics(reg prometheus.Registerer, c *cache.Coordinator) error {
	counter := func(name, help string, get func(cache.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "diffeo",
			Subsystem: "schedcache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(get(c.Stats())) })
	}
	gauge := func(name, help string, get func(cache.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "diffeo",
			Subsystem: "schedcache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(get(c.Stats())) })
	}
	collectors := []prometheus.Collector{
		counter("hits_total", "Range lookups answered from the cache",
			func(s cache.Stats) uint64 { return s.Hits }),
		counter("misses_total", "Range lookups that were not cached",
			func(s cache.Stats) uint64 { return s.Misses }),
		counter("loads_total", "Ranges loaded from the backend",
			func(s cache.Stats) uint64 { return s.Loads }),
		counter("load_errors_total", "Failed range loads",
			func(s cache.Stats) uint64 { return s.LoadErrors }),
		counter("evictions_total", "Ranges dropped from the cache",
			func(s cache.Stats) uint64 { return s.Evictions }),
		gauge("ranges", "Ranges currently cached",
			func(s cache.Stats) int { return s.Ranges }),
		gauge("records", "Event records currently held",
			func(s cache.Stats) int { return s.Records }),
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
