// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command schedbench is a load-generation tool for the schedule
// cache.  It can drive an in-process cache over any backend, or a
// remote schedcached server through its REST API.
package main

import (
	"errors"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diffeo/go-schedcache/backend"
	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/restclient"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// target is what the benchmark exercises.
type target interface {
	Put(event schedule.Event) (schedule.Event, error)
	Day(entity int64, day time.Time) (cache.Result, error)
	Clear() error
}

// localTarget is an in-process cache, written through its store.
type localTarget struct {
	store schedule.Store
	cache *cache.Coordinator
}

func (t localTarget) Put(event schedule.Event) (schedule.Event, error) {
	if t.store == nil {
		return event, errors.New("backend is read-only")
	}
	return t.store.Put(event)
}

func (t localTarget) Day(entity int64, day time.Time) (cache.Result, error) {
	return t.cache.Events(entity, day)
}

func (t localTarget) Clear() error {
	t.cache.Clear()
	return nil
}

type benchWork struct {
	Target      target
	Concurrency int
	Entities    int
	Days        int
	Start       time.Time
	Run         string
}

// Parallel calls runner from Concurrency goroutines at once.
func (bench *benchWork) Parallel(runner func(rng *rand.Rand)) {
	wg := sync.WaitGroup{}
	wg.Add(bench.Concurrency)
	for i := 0; i < bench.Concurrency; i++ {
		seed := time.Now().UnixNano() + int64(i)
		go func() {
			defer wg.Done()
			runner(rand.New(rand.NewSource(seed)))
		}()
	}
	wg.Wait()
}

// randomEvent builds an event at a random time for a random entity.
func (bench *benchWork) randomEvent(rng *rand.Rand, id int64) schedule.Event {
	day := bench.Start.AddDate(0, 0, rng.Intn(bench.Days))
	start := day.Add(time.Duration(8*60+rng.Intn(10*60)) * time.Minute)
	return schedule.Event{
		ID:       id,
		Entity:   int64(1 + rng.Intn(bench.Entities)),
		Start:    start,
		End:      start.Add(time.Duration(15*(1+rng.Intn(4))) * time.Minute),
		Version:  1,
		Versions: schedule.NewVersions(1, 1, 1, 1, 1),
		Data: map[string]interface{}{
			"run":     bench.Run,
			"summary": uuid.NewV4().String(),
		},
	}
}

// numbers feeds 1..count to a channel, then closes it.
func numbers(count int) <-chan int64 {
	ch := make(chan int64)
	go func() {
		for i := 1; i <= count; i++ {
			ch <- int64(i)
		}
		close(ch)
	}()
	return ch
}

var bench benchWork

var populate = cli.Command{
	Name:  "populate",
	Usage: "create many events",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 1000,
			Usage: "number of events to create",
		},
	},
	Action: func(c *cli.Context) error {
		ids := numbers(c.Int("count"))
		var failures int64
		began := time.Now()
		bench.Parallel(func(rng *rand.Rand) {
			for id := range ids {
				if _, err := bench.Target.Put(bench.randomEvent(rng, id)); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		})
		logrus.WithFields(logrus.Fields{
			"count":    c.Int("count"),
			"failures": failures,
			"elapsed":  time.Since(began),
		}).Info("Populated events")
		return nil
	},
}

var query = cli.Command{
	Name:  "query",
	Usage: "query random days",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 10000,
			Usage: "number of queries to run",
		},
	},
	Action: func(c *cli.Context) error {
		queries := numbers(c.Int("count"))
		var failures, events int64
		began := time.Now()
		bench.Parallel(func(rng *rand.Rand) {
			for range queries {
				entity := int64(1 + rng.Intn(bench.Entities))
				day := bench.Start.AddDate(0, 0, rng.Intn(bench.Days))
				result, err := bench.Target.Day(entity, day)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				atomic.AddInt64(&events, int64(len(result.Events)))
			}
		})
		elapsed := time.Since(began)
		logrus.WithFields(logrus.Fields{
			"count":    c.Int("count"),
			"failures": failures,
			"events":   events,
			"elapsed":  elapsed,
			"qps":      float64(c.Int("count")) / elapsed.Seconds(),
		}).Info("Ran queries")
		return nil
	},
}

var churn = cli.Command{
	Name:  "churn",
	Usage: "move existing events around while querying",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: 1000,
			Usage: "number of updates to make",
		},
		cli.IntFlag{
			Name:  "events",
			Value: 1000,
			Usage: "highest event ID to update",
		},
	},
	Action: func(c *cli.Context) error {
		updates := numbers(c.Int("count"))
		maxID := c.Int("events")
		var failures, queries int64
		began := time.Now()
		bench.Parallel(func(rng *rand.Rand) {
			for range updates {
				event := bench.randomEvent(rng, int64(1+rng.Intn(maxID)))
				if _, err := bench.Target.Put(event); err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				if _, err := bench.Target.Day(event.Entity, event.Start); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				atomic.AddInt64(&queries, 1)
			}
		})
		logrus.WithFields(logrus.Fields{
			"updates":  c.Int("count"),
			"queries":  queries,
			"failures": failures,
			"elapsed":  time.Since(began),
		}).Info("Churned events")
		return nil
	},
}

var clearCache = cli.Command{
	Name:  "clear",
	Usage: "forget everything cached",
	Action: func(c *cli.Context) error {
		return bench.Target.Clear()
	},
}

// setup builds the benchmark target from the global flags.
func setup(c *cli.Context, b *backend.Backend) error {
	bench.Concurrency = c.Int("concurrency")
	bench.Entities = c.Int("entities")
	bench.Days = c.Int("days")
	if bench.Concurrency < 1 || bench.Entities < 1 || bench.Days < 1 {
		return errors.New("concurrency, entities, and days must be positive")
	}
	bench.Run = uuid.NewV4().String()

	if url := c.String("url"); url != "" {
		client, err := restclient.New(url)
		if err != nil {
			return err
		}
		bench.Target = client
		loc := client.Location()
		if loc == nil {
			loc = time.Local
		}
		bench.Start = schedule.Day(time.Now(), loc).From
		return nil
	}

	source, err := b.Source()
	if err != nil {
		return err
	}
	local := localTarget{
		cache: cache.New(source, cache.Config{
			PerDay: c.Bool("per-day"),
			Logger: logrus.StandardLogger(),
		}),
	}
	if store, isStore := source.(schedule.Store); isStore {
		local.store = store
		store.Watch(local.cache)
	}
	bench.Target = local
	bench.Start = schedule.Day(time.Now(), time.Local).From
	return nil
}

func main() {
	b := backend.Backend{Implementation: "memory"}
	app := cli.NewApp()
	app.Usage = "benchmark the schedule event cache"
	app.Flags = []cli.Flag{
		cli.GenericFlag{
			Name:  "backend",
			Value: &b,
			Usage: "impl:[address] of the event backend",
		},
		cli.StringFlag{
			Name:  "url",
			Usage: "base URL of a schedcached server to use instead of a local cache",
		},
		cli.BoolTFlag{
			Name:  "per-day",
			Usage: "cache whole days in the local cache",
		},
		cli.IntFlag{
			Name:  "concurrency",
			Value: runtime.NumCPU(),
			Usage: "run this many jobs in parallel",
		},
		cli.IntFlag{
			Name:  "entities",
			Value: 20,
			Usage: "number of schedule entities",
		},
		cli.IntFlag{
			Name:  "days",
			Value: 30,
			Usage: "number of days to spread events over",
		},
	}
	app.Commands = []cli.Command{
		populate,
		query,
		churn,
		clearCache,
	}
	app.Before = func(c *cli.Context) error {
		return setup(c, &b)
	}
	app.RunAndExitOnError()
}
