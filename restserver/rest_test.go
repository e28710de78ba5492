// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/diffeo/go-schedcache/cache"
	"github.com/diffeo/go-schedcache/memory"
	"github.com/diffeo/go-schedcache/restdata"
	"github.com/diffeo/go-schedcache/schedule"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

var day = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type restFixture struct {
	*assert.Assertions
	store  *memory.Store
	cache  *cache.Coordinator
	router http.Handler
}

// newRestFixture builds a server on a memory store.  If withStore is
// false, writes go straight to the cache.
func newRestFixture(t *testing.T, withStore bool) *restFixture {
	logger, _ := test.NewNullLogger()
	f := &restFixture{
		Assertions: assert.New(t),
		store:      memory.New(),
	}
	f.cache = cache.New(f.store, cache.Config{
		PerDay:   true,
		Location: time.UTC,
		Logger:   logger,
	})
	config := Config{Cache: f.cache, Logger: logger}
	if withStore {
		f.store.Watch(f.cache)
		config.Store = f.store
	}
	f.router = NewRouter(config)
	return f
}

func (f *restFixture) put(id int64, fromHour, toHour int) schedule.Event {
	event, err := f.store.Put(schedule.Event{
		ID:      id,
		Entity:  42,
		Start:   day.Add(time.Duration(fromHour) * time.Hour),
		End:     day.Add(time.Duration(toHour) * time.Hour),
		Version: 1,
	})
	f.NoError(err)
	return event
}

func (f *restFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

// get performs a request and decodes a successful response into out.
func (f *restFixture) get(path string, out interface{}) bool {
	resp := f.do(http.MethodGet, path, "")
	if !f.Equal(http.StatusOK, resp.Code, "%v: %v", path, resp.Body.String()) {
		return false
	}
	return f.NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, out))
}

// failure checks the status and error code of a failed request.
func (f *restFixture) failure(resp *httptest.ResponseRecorder, status int, code string) {
	f.Equal(status, resp.Code, resp.Body.String())
	var errResp restdata.ErrorResponse
	if f.NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, &errResp)) {
		f.Equal(code, errResp.Error)
	}
}

func rangeQuery(path string, from, to time.Time) string {
	return path + "?" + url.Values{
		"from": {restdata.EncodeTime(from)},
		"to":   {restdata.EncodeTime(to)},
	}.Encode()
}

func TestRootDocument(t *testing.T) {
	f := newRestFixture(t, true)
	var root restdata.RootData
	if !f.get("/", &root) {
		return
	}
	f.Equal("/", root.URL)
	f.Equal("/entity/{entity}/events{?from,to}", root.EventsURL)
	f.Equal("/entity/{entity}/day/{day}", root.DayURL)
	f.Equal("/entity/{entity}/day/{day}/cached", root.CachedURL)
	f.Equal("/entity/{entity}/modhash{?from,to}", root.ModHashURL)
	f.Equal("/event/{event}", root.EventURL)
	f.Equal("/event/{event}/remove", root.RemoveEventURL)
	f.Equal("/clear", root.ClearURL)
	f.Equal("/stats", root.StatsURL)
	f.True(root.PerDay)
	f.Equal("UTC", root.Location)
}

func TestDayAndCached(t *testing.T) {
	f := newRestFixture(t, true)
	f.put(1, 9, 10)

	var list restdata.EventList
	if f.get("/entity/42/day/2024-01-01/cached", &list) {
		f.False(list.Cached)
		f.Empty(list.Events)
		f.Equal(schedule.UnknownModHash, list.ModHash)
	}

	list = restdata.EventList{}
	if !f.get("/entity/42/day/2024-01-01", &list) {
		return
	}
	if f.Len(list.Events, 1) {
		f.Equal(int64(1), list.Events[0].ID)
		f.Equal("/event/1", list.Events[0].URL)
		f.True(list.Events[0].Start.Equal(day.Add(9 * time.Hour)))
	}
	f.NotEqual(schedule.UnknownModHash, list.ModHash)

	var cached restdata.EventList
	if f.get("/entity/42/day/2024-01-01/cached", &cached) {
		f.True(cached.Cached)
		f.Len(cached.Events, 1)
		f.Equal(list.ModHash, cached.ModHash)
	}
}

func TestEventsAndModHash(t *testing.T) {
	f := newRestFixture(t, true)
	f.put(1, 9, 10)
	f.put(2, 11, 12)

	var mh restdata.ModHash
	modHashPath := rangeQuery("/entity/42/modhash", day, day.AddDate(0, 0, 1))
	if f.get(modHashPath, &mh) {
		f.Equal(schedule.UnknownModHash, mh.ModHash)
	}

	var list restdata.EventList
	if f.get(rangeQuery("/entity/42/events", day.Add(8*time.Hour), day.Add(9*time.Hour+30*time.Minute)), &list) {
		if f.Len(list.Events, 1) {
			f.Equal(int64(1), list.Events[0].ID)
		}
	}

	list = restdata.EventList{}
	if f.get(rangeQuery("/entity/42/events", day, day.AddDate(0, 0, 1)), &list) {
		f.Len(list.Events, 2)
	}
	mh = restdata.ModHash{}
	if f.get(modHashPath, &mh) {
		f.Equal(list.ModHash, mh.ModHash)
	}
}

func TestPutEvent(t *testing.T) {
	f := newRestFixture(t, true)
	var list restdata.EventList
	if !f.get("/entity/42/day/2024-01-01", &list) {
		return
	}
	f.Empty(list.Events)

	resp := f.do(http.MethodPut, "/event/5",
		`{"entity":42,"start":"2024-01-01T11:00:00Z","end":"2024-01-01T12:00:00Z","version":1,"versions":{"patient":3}}`)
	if !f.Equal(http.StatusOK, resp.Code, resp.Body.String()) {
		return
	}
	var rep restdata.Event
	if f.NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, &rep)) {
		f.Equal(int64(5), rep.ID)
		f.Equal("/event/5", rep.URL)
		f.Equal(map[string]int64{"patient": 3}, rep.Versions)
	}

	stored, err := f.store.Get(5)
	if f.NoError(err) {
		f.Equal(int64(42), stored.Entity)
	}

	// The store notified the cache, so the cached day has it
	list = restdata.EventList{}
	if f.get("/entity/42/day/2024-01-01/cached", &list) {
		f.True(list.Cached)
		if f.Len(list.Events, 1) {
			f.Equal(int64(5), list.Events[0].ID)
		}
	}

	var got restdata.Event
	if f.get("/event/5", &got) {
		f.Equal(int64(42), got.Entity)
	}
}

func TestPutMismatchedID(t *testing.T) {
	f := newRestFixture(t, true)
	resp := f.do(http.MethodPut, "/event/5",
		`{"id":6,"entity":42,"start":"2024-01-01T11:00:00Z","end":"2024-01-01T12:00:00Z"}`)
	f.failure(resp, http.StatusBadRequest, "error")
}

func TestPutBadEvent(t *testing.T) {
	f := newRestFixture(t, true)
	resp := f.do(http.MethodPut, "/event/5",
		`{"entity":42,"start":"2024-01-01T11:00:00Z","end":"2024-01-01T10:00:00Z"}`)
	f.failure(resp, http.StatusBadRequest, "ErrBadEvent")
}

func TestRemoveEvent(t *testing.T) {
	f := newRestFixture(t, true)
	f.put(1, 9, 10)
	var list restdata.EventList
	if !f.get("/entity/42/day/2024-01-01", &list) {
		return
	}
	f.Len(list.Events, 1)

	resp := f.do(http.MethodPost, "/event/1/remove", `{}`)
	f.Equal(http.StatusNoContent, resp.Code, resp.Body.String())

	list = restdata.EventList{}
	if f.get("/entity/42/day/2024-01-01/cached", &list) {
		f.True(list.Cached)
		f.Empty(list.Events)
	}

	resp = f.do(http.MethodPost, "/event/1/remove", `{}`)
	f.failure(resp, http.StatusNotFound, "ErrNoSuchEvent")

	resp = f.do(http.MethodGet, "/event/1", "")
	f.failure(resp, http.StatusNotFound, "ErrNoSuchEvent")
}

func TestWithoutStore(t *testing.T) {
	f := newRestFixture(t, false)
	var list restdata.EventList
	if !f.get("/entity/42/day/2024-01-01", &list) {
		return
	}

	resp := f.do(http.MethodPut, "/event/5",
		`{"entity":42,"start":"2024-01-01T11:00:00Z","end":"2024-01-01T12:00:00Z","version":1}`)
	f.Equal(http.StatusOK, resp.Code, resp.Body.String())
	_, err := f.store.Get(5)
	f.Equal(schedule.ErrNoSuchEvent{ID: 5}, err, "nothing written to the store")

	list = restdata.EventList{}
	if f.get("/entity/42/day/2024-01-01/cached", &list) {
		f.Len(list.Events, 1)
	}

	resp = f.do(http.MethodGet, "/event/5", "")
	f.Equal(http.StatusNotImplemented, resp.Code)

	resp = f.do(http.MethodPost, "/event/5/remove",
		`{"entity":42,"start":"2024-01-01T11:00:00Z","end":"2024-01-01T12:00:00Z","version":1}`)
	f.Equal(http.StatusNoContent, resp.Code, resp.Body.String())

	list = restdata.EventList{}
	if f.get("/entity/42/day/2024-01-01/cached", &list) {
		f.Empty(list.Events)
	}
}

func TestClearAndStats(t *testing.T) {
	f := newRestFixture(t, true)
	f.put(1, 9, 10)
	var list restdata.EventList
	f.get("/entity/42/day/2024-01-01", &list)

	var stats restdata.Stats
	if f.get("/stats", &stats) {
		f.Equal(1, stats.Ranges)
		f.Equal(uint64(1), stats.Loads)
		f.Equal(uint64(1), stats.Misses)
	}

	resp := f.do(http.MethodPost, "/clear", `{}`)
	f.Equal(http.StatusNoContent, resp.Code, resp.Body.String())

	stats = restdata.Stats{}
	if f.get("/stats", &stats) {
		f.Equal(0, stats.Ranges)
		f.Equal(0, stats.Records)
	}
}

func TestBadRequests(t *testing.T) {
	f := newRestFixture(t, true)
	f.failure(f.do(http.MethodGet, "/entity/x/day/2024-01-01", ""),
		http.StatusBadRequest, "error")
	f.failure(f.do(http.MethodGet, "/entity/42/day/2024-02-30", ""),
		http.StatusBadRequest, "error")
	f.failure(f.do(http.MethodGet, "/entity/42/events?from=2024-01-01T00:00:00Z", ""),
		http.StatusBadRequest, "error")
	f.failure(f.do(http.MethodGet, "/entity/42/events?from=2024-01-02T00:00:00Z&to=2024-01-01T00:00:00Z", ""),
		http.StatusBadRequest, "ErrBadRange")
	f.failure(f.do(http.MethodGet, "/entity/42/modhash?from=yesterday&to=2024-01-01T00:00:00Z", ""),
		http.StatusBadRequest, "error")
	f.failure(f.do(http.MethodPost, "/clear", ""),
		http.StatusUnsupportedMediaType, "error")
	f.failure(f.do(http.MethodDelete, "/event/1", ""),
		http.StatusMethodNotAllowed, "error")
}

func TestNegotiation(t *testing.T) {
	f := newRestFixture(t, true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	f.Equal(http.StatusNotAcceptable, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html;q=0.9, application/json;q=0.5, */*;q=0.1")
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	f.Equal(http.StatusOK, resp.Code)
	f.Equal("application/json", resp.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/*")
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	f.Equal("text/json", resp.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodPut, "/event/5", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	resp = httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	f.Equal(http.StatusUnsupportedMediaType, resp.Code)
}

type failResponseWriter struct {
	Headers    http.Header
	StatusCode int
}

func (rw *failResponseWriter) Header() http.Header {
	if rw.Headers == nil {
		rw.Headers = make(http.Header)
	}
	return rw.Headers
}

func (rw *failResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("foo")
}

func (rw *failResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
}

// TestDoubleFault checks that, if there is an error serializing a JSON
// response, it doesn't actually panic the process.
func TestDoubleFault(t *testing.T) {
	f := newRestFixture(t, true)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	resp := &failResponseWriter{}
	f.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
