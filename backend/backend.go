// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct an event
// source based on command-line flags.
package backend

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/diffeo/go-schedcache/icsfeed"
	"github.com/diffeo/go-schedcache/memory"
	"github.com/diffeo/go-schedcache/postgres"
	"github.com/diffeo/go-schedcache/schedule"
)

// Backend describes user-visible parameters to reach event data.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{Implementation: "memory"}
//         flag.Var(&backend, "backend", "impl:address of event storage")
//         flag.Parse()
//         source, err := backend.Source()
//     }
//
// The known implementations are:
//
//     memory                        in-process, empty at startup
//     postgres:connection-string    PostgreSQL; see postgres.New
//     ics:42=/path/a.ics,43=https://host/b.ics
//                                   read-only iCalendar feeds, one
//                                   per entity ID
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// Source creates a new event source.  This generally should be only
// called once.  If the backend has in-process state, such as a
// database connection pool or an in-memory store, calling this
// multiple times will create multiple copies of that state.
//
// Sources that can be written to also implement schedule.Store.
func (b *Backend) Source() (schedule.EventSource, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(b.Address)
	case "ics":
		feeds, err := ParseFeeds(b.Address)
		if err != nil {
			return nil, err
		}
		return icsfeed.New(icsfeed.Config{Feeds: feeds}), nil
	default:
		return nil, errors.New("unknown event backend " + b.Implementation)
	}
}

// ParseFeeds parses a comma-separated list of entity=location pairs.
func ParseFeeds(address string) (map[int64]string, error) {
	feeds := make(map[int64]string)
	if address == "" {
		return nil, errors.New("ics backend needs at least one entity=location feed")
	}
	for _, part := range strings.Split(address, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[1] == "" {
			return nil, fmt.Errorf("feed %q is not entity=location", part)
		}
		entity, err := strconv.ParseInt(strings.TrimSpace(kv[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("feed %q: bad entity ID: %v", part, err)
		}
		feeds[entity] = strings.TrimSpace(kv[1])
	}
	return feeds, nil
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Set validates the feed
// list of the ics backend, but does not attempt to validate other
// addresses or actually make a connection.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	impl, address := parts[0], ""
	if len(parts) == 2 {
		address = parts[1]
	}
	switch impl {
	case "memory", "postgres":
	case "ics":
		if _, err := ParseFeeds(address); err != nil {
			return err
		}
	default:
		return errors.New("unknown event backend " + impl)
	}
	b.Implementation = impl
	b.Address = address
	return nil
}
