// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains helpers to build URLs for named routes.

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

type urlBuilder struct {
	Router *mux.Router
	Params []string
	Error  error
}

// buildURLs starts building URLs on router, with some fixed route
// parameters given as name/value pairs.
func buildURLs(router *mux.Router, params ...string) *urlBuilder {
	return &urlBuilder{Router: router, Params: params}
}

func (u *urlBuilder) route(name string) *mux.Route {
	if u.Error != nil {
		return nil
	}
	r := u.Router.Get(name)
	if r == nil {
		u.Error = fmt.Errorf("No such route %q", name)
	}
	return r
}

// URL fills out with the URL of a named route, using the fixed
// parameters.
func (u *urlBuilder) URL(out *string, route string) *urlBuilder {
	return u.Template(out, route)
}

// Template fills out with an RFC 6570 template of a named route,
// where each of the named params is left as a {param} placeholder.
func (u *urlBuilder) Template(out *string, route string, params ...string) *urlBuilder {
	return u.QueryTemplate(out, route, nil, params...)
}

// QueryTemplate is like Template, but also appends query parameters
// as a {?q1,q2} expansion.
func (u *urlBuilder) QueryTemplate(out *string, route string, query []string, params ...string) *urlBuilder {
	r := u.route(route)
	if u.Error != nil {
		return u
	}
	// mux needs a value for every variable; use unlikely
	// placeholders and then swap them for template syntax
	pairs := make([]string, 0, len(u.Params)+2*len(params))
	for i, param := range params {
		pairs = append(pairs, param, fmt.Sprintf("---%d---", i))
	}
	pairs = append(pairs, u.Params...)
	var built *url.URL
	built, u.Error = r.URL(pairs...)
	if u.Error != nil {
		return u
	}
	s := built.String()
	for i, param := range params {
		s = strings.Replace(s, fmt.Sprintf("---%d---", i), "{"+param+"}", 1)
	}
	if len(query) > 0 {
		s += "{?" + strings.Join(query, ",") + "}"
	}
	*out = s
	return u
}
