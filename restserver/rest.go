// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains a REST skeleton framework: HTTP content type
// negotiation, and a standard way to deal with input and output
// values.

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/diffeo/go-schedcache/restdata"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// mediaTypes maps every request or response type we understand to
// the canonical type it is handled as.
var mediaTypes = map[string]string{
	"text/json":              restdata.V1JSONMediaType,
	"application/json":       restdata.V1JSONMediaType,
	restdata.JSONMediaType:   restdata.V1JSONMediaType,
	restdata.V1JSONMediaType: restdata.V1JSONMediaType,
}

// errBadAccept is returned from negotiateResponse() if the Accept:
// header is malformed (and no more specific error applies).
var errBadAccept = errors.New("Invalid Accept: header")

// errNotAcceptable is returned from negotiateResponse() if the Accept:
// header does not mention any media types we can actually return.
type errNotAcceptable struct{}

func (e errNotAcceptable) Error() string {
	return "No acceptable representation for response"
}

func (e errNotAcceptable) HTTPStatus() int {
	return http.StatusNotAcceptable
}

// errMethodNotAllowed flags an HTTP method a resource has no handler
// for.
type errMethodNotAllowed struct {
	Method string
}

func (e errMethodNotAllowed) Error() string {
	return fmt.Sprintf("Method %v not allowed", e.Method)
}

func (e errMethodNotAllowed) HTTPStatus() int {
	return http.StatusMethodNotAllowed
}

type resourceHandler struct {
	// Representation is an object representing this resource.
	// PUT and POST bodies are decoded into a value of this type.
	Representation interface{}

	// Context reads an HTTP request and produces a context object.
	Context func(req *http.Request) (*context, error)

	// Logger receives server-side failures.
	Logger logrus.FieldLogger

	// Get, if non-nil, returns a representation of the object.
	Get func(*context) (interface{}, error)

	// Put, if non-nil, updates the object.  The interface
	// parameter is guaranteed to be the same type as
	// Representation.
	Put func(*context, interface{}) (interface{}, error)

	// Post, if non-nil, takes some arbitrary action.  The
	// interface parameter is guaranteed to be the same type as
	// Representation.
	Post func(*context, interface{}) (interface{}, error)
}

func (h *resourceHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		ctx          *context
		in, out      interface{}
		err          error
		status       int
		responseType string
	)

	// Recover from panics by sending an HTTP error.
	defer func() {
		if recovered := recover(); recovered != nil {
			response := restdata.ErrorResponse{}
			response.FromPanic(recovered)
			h.Logger.WithFields(logrus.Fields{
				"method": req.Method,
				"url":    req.URL.String(),
				"panic":  response.Message,
			}).Error("REST handler panicked")
			resp.Header().Set("Content-Type", restdata.V1JSONMediaType)
			resp.WriteHeader(http.StatusInternalServerError)
			_ = codec.NewEncoder(resp, &codec.JsonHandle{}).Encode(response)
		}
	}()

	// The response type determines what format an error message
	// could be sent back as, so pick it first.
	status = http.StatusBadRequest
	responseType, err = negotiateResponse(req)
	if err != nil {
		responseType = restdata.V1JSONMediaType
	}

	if err == nil {
		ctx, err = h.Context(req)
	}

	if err == nil && (req.Method == http.MethodPut || req.Method == http.MethodPost) {
		in = reflect.Zero(reflect.TypeOf(h.Representation)).Interface()
		contentType := req.Header.Get("Content-Type")
		err = restdata.Decode(contentType, req.Body, &in)
		if _, isStatus := err.(restdata.ErrorStatus); err != nil && !isStatus {
			err = restdata.ErrBadRequest{Err: err}
		}
	}

	if err == nil {
		err = errMethodNotAllowed{Method: req.Method}
		status = http.StatusInternalServerError
		switch req.Method {
		case http.MethodGet, http.MethodHead:
			if h.Get != nil {
				out, err = h.Get(ctx)
			}
		case http.MethodPut:
			if h.Put != nil {
				out, err = h.Put(ctx, in)
			}
		case http.MethodPost:
			if h.Post != nil {
				out, err = h.Post(ctx, in)
			}
		}
	}

	if err != nil {
		err = restdata.WithStatus(err)
		if errS, hasStatus := err.(restdata.ErrorStatus); hasStatus {
			status = errS.HTTPStatus()
		}
		if status >= http.StatusInternalServerError {
			h.Logger.WithError(err).WithFields(logrus.Fields{
				"method": req.Method,
				"url":    req.URL.String(),
			}).Warn("REST request failed")
		}
		errResp := restdata.ErrorResponse{Error: "error", Message: err.Error()}
		errResp.FromError(err)
		out = errResp
	} else if out == nil {
		status = http.StatusNoContent
	} else {
		status = http.StatusOK
		if req.Method == http.MethodHead {
			out = nil
		}
	}

	if mediaTypes[responseType] != restdata.V1JSONMediaType {
		// negotiateResponse only returns types it knows
		status = http.StatusInternalServerError
		out = restdata.ErrorResponse{Error: "error", Message: "Invalid response type " + responseType}
		responseType = restdata.V1JSONMediaType
	}

	if out != nil {
		resp.Header().Set("Content-Type", responseType)
	}
	resp.WriteHeader(status)
	if out != nil {
		// The status line is already out, so a failure here
		// can only be logged
		err = codec.NewEncoder(resp, &codec.JsonHandle{}).Encode(out)
		if err != nil {
			h.Logger.WithError(err).Debug("Failed writing REST response")
		}
	}
}

// negotiateResponse returns a supported MIME type for the response
// body, following the path laid out in RFC 7231 section 5.3.
func negotiateResponse(req *http.Request) (string, error) {
	accept := req.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	bestType := ""
	bestQ := 0.0
	isWildcard := func(t string) bool {
		return t == "*/*" || t == "text/*" || t == "application/*"
	}
	for _, mediaRange := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(mediaRange))
		if err != nil {
			return "", err
		}

		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil {
				return "", err
			}
			if q < 0.0 || q > 1.0 {
				return "", errBadAccept
			}
		}
		if q < bestQ {
			continue
		}

		// A specific type beats any wildcard, a type-level
		// wildcard beats */*, and otherwise the first one at a
		// given q wins
		switch {
		case mediaType == "*/*":
			if q > bestQ {
				bestType, bestQ = mediaType, q
			}
		case mediaType == "text/*" || mediaType == "application/*":
			if q > bestQ || bestType == "*/*" {
				bestType, bestQ = mediaType, q
			}
		default:
			if _, known := mediaTypes[mediaType]; known && (q > bestQ || isWildcard(bestType)) {
				bestType, bestQ = mediaType, q
			}
		}
	}
	if bestQ == 0.0 {
		return "", errNotAcceptable{}
	}
	switch bestType {
	case "*/*", "application/*":
		return restdata.V1JSONMediaType, nil
	case "text/*":
		return "text/json", nil
	default:
		return bestType, nil
	}
}
