// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes a schedule cache as a REST service.
// The restclient package is a matching client.
//
// The complete REST API is defined in the restdata package.  In
// particular, note that the URLs described here are not actually part
// of the API.
//
// HTTP Considerations
//
// Responses are JSON.  Clients may use the standard HTTP Accept:
// header to request a specific variant; see "MIME Types" below.
//
// This interface does not support HTTP caching or authentication
// headers.  Clients that want to avoid refetching unchanged days
// should poll the modification hash instead.
//
// MIME Types
//
// This interface understands MIME types as follows:
//
//     application/vnd.diffeo.schedcache.v1+json
//
// JSON representation of version 1 of this interface.
//
//     application/vnd.diffeo.schedcache+json
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
// URL Scheme
//
// Entities and events are addressed by their decimal IDs.  Days are
// YYYY-MM-DD in the cache's time zone, and the from and to query
// parameters are RFC 3339 times.  The following URLs are defined:
//
//     /
//     /entity/{entity}/events?from=...&to=...
//     /entity/{entity}/day/{day}
//     /entity/{entity}/day/{day}/cached
//     /entity/{entity}/modhash?from=...&to=...
//     /event/{event}
//     /event/{event}/remove
//     /clear
//     /stats
package restserver
