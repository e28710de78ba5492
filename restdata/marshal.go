// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"encoding/base64"
	"io"
	"mime"
	"reflect"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/ugorji/go/codec"
)

var mapStringIntfType = reflect.TypeOf(map[string]interface{}(nil))

// Decode tries to decode a restdata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.
func Decode(contentType string, r io.Reader, out interface{}) error {
	if contentType == "" {
		// RFC 7231 section 3.1.1.5
		contentType = "application/octet-stream"
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return err
	}

	switch mediaType {
	case "text/json", "application/json", JSONMediaType, V1JSONMediaType:
		json := &codec.JsonHandle{}
		json.MapType = mapStringIntfType
		decoder := codec.NewDecoder(r, json)
		return decoder.Decode(out)
	default:
		return ErrUnsupportedMediaType{Type: mediaType}
	}
}

// needsCBOREncoding decides whether an object needs to be encoded as
// CBOR.  It does iff any of its embedded objects is a byte slice,
// which JSON would turn into an indistinguishable base64 string.
func needsCBOREncoding(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if needsCBOREncoding(v.Index(i)) {
				return true
			}
		}
		return false

	case reflect.Map:
		for _, key := range v.MapKeys() {
			if needsCBOREncoding(v.MapIndex(key)) {
				return true
			}
		}
		return false

	case reflect.Interface, reflect.Ptr:
		vv := v.Elem()
		if vv.IsValid() {
			return needsCBOREncoding(vv)
		}
		return false
	}
	return false
}

// MarshalJSON returns a JSON representation of a data dictionary.
// If any of the dictionary's embedded values is a byte slice, returns
// a base64-encoded CBOR string; otherwise returns a normal JSON
// object.
func (d DataDict) MarshalJSON() (out []byte, err error) {
	var v interface{} = map[string]interface{}(d)
	if needsCBOREncoding(reflect.ValueOf(d)) {
		var intermediate []byte
		encoder := codec.NewEncoderBytes(&intermediate, &codec.CborHandle{})
		err = encoder.Encode(map[string]interface{}(d))
		if err != nil {
			return nil, err
		}
		v = base64.StdEncoding.EncodeToString(intermediate)
	}
	encoder := codec.NewEncoderBytes(&out, &codec.JsonHandle{})
	err = encoder.Encode(v)
	return
}

// UnmarshalJSON converts a byte array back into a data dictionary.
// If it is a string, it should be base64-encoded CBOR.  If it is
// an object it is decoded normally.
func (d *DataDict) UnmarshalJSON(in []byte) error {
	json := &codec.JsonHandle{}
	json.MapType = mapStringIntfType
	var h codec.Handle = json
	b := in
	if len(in) > 0 && in[0] == '"' {
		var s string
		err := codec.NewDecoderBytes(in, json).Decode(&s)
		if err != nil {
			return err
		}
		b, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		cbor := &codec.CborHandle{}
		cbor.MapType = mapStringIntfType
		h = cbor
	}
	decoder := codec.NewDecoderBytes(b, h)
	return decoder.Decode((*map[string]interface{})(d))
}

// FromEvent fills in a representation from an event snapshot.  It
// does not set the URL.
func (e *Event) FromEvent(event schedule.Event) {
	e.ID = event.ID
	e.Entity = event.Entity
	e.Start = event.Start
	e.End = event.End
	e.Version = event.Version
	e.Versions = event.Versions.Map()
	e.Data = DataDict(event.Data)
}

// ToEvent converts a representation back to an event snapshot.
func (e Event) ToEvent() schedule.Event {
	return schedule.Event{
		ID:       e.ID,
		Entity:   e.Entity,
		Start:    e.Start,
		End:      e.End,
		Version:  e.Version,
		Versions: schedule.VersionsFromMap(e.Versions),
		Data:     map[string]interface{}(e.Data),
	}
}

// FromEvents fills in an event list from a slice of events.
func (l *EventList) FromEvents(events []schedule.Event, modHash int64) {
	l.Events = make([]Event, len(events))
	for i, event := range events {
		l.Events[i].FromEvent(event)
	}
	l.ModHash = modHash
}

// ToEvents converts the list back to event snapshots.
func (l EventList) ToEvents() []schedule.Event {
	events := make([]schedule.Event, len(l.Events))
	for i, event := range l.Events {
		events[i] = event.ToEvent()
	}
	return events
}
