// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/diffeo/go-schedcache/icsfeed"
	"github.com/diffeo/go-schedcache/schedule"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers, URL parameters, or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrBadGateway wraps a failure fetching data from an upstream
// service, such as a calendar feed.
type ErrBadGateway struct {
	Err error
}

func (e ErrBadGateway) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 502 Bad Gateway HTTP status code.
func (e ErrBadGateway) HTTPStatus() int {
	return http.StatusBadGateway
}

// WithStatus wraps the well-known schedule errors in the wrapper that
// gives them their HTTP status.  Other errors are returned unchanged.
func WithStatus(err error) error {
	if err == schedule.ErrBadRange {
		return ErrBadRequest{Err: err}
	}
	switch err.(type) {
	case schedule.ErrNoSuchEvent, icsfeed.ErrNoSuchFeed:
		return ErrNotFound{Err: err}
	case schedule.ErrBadEvent, schedule.ErrUnsupportedEvent:
		return ErrBadRequest{Err: err}
	case icsfeed.ErrHTTPStatus:
		return ErrBadGateway{Err: err}
	}
	return err
}

// FromError populates an ErrorResponse to fill in its fields based
// on an error value.  This remaps the well-known schedule errors to
// specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	if err == schedule.ErrBadRange {
		e.Error = "ErrBadRange"
	}
	switch et := err.(type) {
	case schedule.ErrNoSuchEvent:
		e.Error = "ErrNoSuchEvent"
		e.ID = et.ID
	case schedule.ErrBadEvent:
		e.Error = "ErrBadEvent"
		e.ID = et.ID
		e.Value = et.Reason
	case schedule.ErrUnsupportedEvent:
		e.Error = "ErrUnsupportedEvent"
		e.Value = et.Type
	case icsfeed.ErrNoSuchFeed:
		e.Error = "ErrNoSuchFeed"
		e.ID = et.Entity
	case ErrNotFound:
		// Discard this wrapper and return the embedded error
		e.FromError(et.Err)
	case ErrBadRequest:
		e.FromError(et.Err)
	case ErrBadGateway:
		e.FromError(et.Err)
	}
}

// ToError converts e back to a schedule error, if that is possible.
// If not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrBadRange":
		return schedule.ErrBadRange
	case "ErrNoSuchEvent":
		return schedule.ErrNoSuchEvent{ID: e.ID}
	case "ErrBadEvent":
		return schedule.ErrBadEvent{ID: e.ID, Reason: e.Value}
	case "ErrUnsupportedEvent":
		return schedule.ErrUnsupportedEvent{Type: e.Value}
	case "ErrNoSuchFeed":
		return icsfeed.ErrNoSuchFeed{Entity: e.ID}
	default:
		return errors.New(e.Message)
	}
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//    }
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	n := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:n])
}
