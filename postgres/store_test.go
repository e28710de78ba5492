// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres_test

import (
	"os"
	"testing"

	"github.com/diffeo/go-schedcache/postgres"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/diffeo/go-schedcache/schedule/scheduletest"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic store tests against a live database.
type Suite struct {
	scheduletest.Suite
}

// SetupSuite checks that the database is reachable.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	store, err := postgres.New(os.Getenv("SCHEDCACHE_POSTGRES"))
	s.Require().NoError(err)
	s.Require().NoError(store.Close())

	s.NewStore = func() schedule.Store {
		store, err := postgres.New(os.Getenv("SCHEDCACHE_POSTGRES"))
		s.Require().NoError(err)
		s.Require().NoError(store.Truncate())
		return store
	}
}

// TearDownTest closes the per-test connection, which also drops its
// listeners.
func (s *Suite) TearDownTest() {
	if store, ok := s.Store.(*postgres.Store); ok {
		store.Close()
	}
}

// TestStore is the top-level entry point to run tests.
//
// This creates a PostgreSQL store using the connection string in
// $SCHEDCACHE_POSTGRES, which may be empty to take every setting from
// the environment variables described in
// http://www.postgresql.org/docs/current/static/libpq-envars.html.
// If neither that nor $PGHOST is set the tests are skipped.
func TestStore(t *testing.T) {
	if os.Getenv("SCHEDCACHE_POSTGRES") == "" && os.Getenv("PGHOST") == "" {
		t.Skip("no PostgreSQL database configured")
	}
	suite.Run(t, &Suite{})
}
