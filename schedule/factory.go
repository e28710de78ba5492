// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schedule

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultFactory accepts Event and *Event values as they are, and
// decodes map[string]interface{} values through MapFactory.
var DefaultFactory Factory = defaultFactory{}

type defaultFactory struct{}

func (defaultFactory) Event(source interface{}) (Event, error) {
	switch s := source.(type) {
	case Event:
		return s, s.Validate()
	case *Event:
		if s == nil {
			return Event{}, ErrUnsupportedEvent{Type: "nil"}
		}
		return *s, s.Validate()
	case map[string]interface{}:
		return MapFactory{}.Event(s)
	default:
		return Event{}, ErrUnsupportedEvent{Type: fmt.Sprintf("%T", source)}
	}
}

// MapFactory decodes generic property bags, such as decoded JSON or
// YAML objects, into events.  The recognized keys are "id",
// "entity", "start", "end", "version", "data", and one key per
// secondary version slot ("participation", "customer", "patient",
// "clinician", "schedule_type").  Times may be time.Time values,
// RFC 3339 strings, or integer Unix seconds.  Numbers may be of any
// numeric type or decimal strings.
type MapFactory struct{}

// eventMap is the decoding target for MapFactory.
type eventMap struct {
	ID            int64                  `mapstructure:"id"`
	Entity        int64                  `mapstructure:"entity"`
	Start         time.Time              `mapstructure:"start"`
	End           time.Time              `mapstructure:"end"`
	Version       int64                  `mapstructure:"version"`
	Participation *int64                 `mapstructure:"participation"`
	Customer      *int64                 `mapstructure:"customer"`
	Patient       *int64                 `mapstructure:"patient"`
	Clinician     *int64                 `mapstructure:"clinician"`
	ScheduleType  *int64                 `mapstructure:"schedule_type"`
	Data          map[string]interface{} `mapstructure:"data"`
}

// Event decodes a map[string]interface{} into an event.
func (MapFactory) Event(source interface{}) (event Event, err error) {
	m, ok := source.(map[string]interface{})
	if !ok {
		return event, ErrUnsupportedEvent{Type: fmt.Sprintf("%T", source)}
	}

	var raw eventMap
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			unixSecondsToTimeHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return
	}
	if err = decoder.Decode(m); err != nil {
		return
	}

	event.ID = raw.ID
	event.Entity = raw.Entity
	event.Version = raw.Version
	event.Data = raw.Data
	event.Start = raw.Start
	event.End = raw.End
	for key, value := range map[VersionKey]*int64{
		ParticipationVersion: raw.Participation,
		CustomerVersion:      raw.Customer,
		PatientVersion:       raw.Patient,
		ClinicianVersion:     raw.Clinician,
		ScheduleTypeVersion:  raw.ScheduleType,
	} {
		if value != nil {
			event.Versions = event.Versions.Set(key, *value)
		}
	}
	err = event.Validate()
	return
}

// unixSecondsToTimeHookFunc returns a mapstructure.DecodeHookFunc
// that converts numbers to times, as integer Unix seconds.
func unixSecondsToTimeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f == nil || t != reflect.TypeOf(time.Time{}) {
			return data, nil
		}
		v := reflect.ValueOf(data)
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Unix(v.Int(), 0).UTC(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Unix(int64(v.Uint()), 0).UTC(), nil
		case reflect.Float32, reflect.Float64:
			return time.Unix(int64(v.Float()), 0).UTC(), nil
		default:
			return data, nil
		}
	}
}
