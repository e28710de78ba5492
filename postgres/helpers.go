// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"reflect"

	"github.com/diffeo/go-schedcache/schedule"
	"github.com/ugorji/go/codec"
)

// nested maps decode as this type, not map[interface{}]interface{}
var mapStringIntfType = reflect.TypeOf(map[string]interface{}(nil))

// dictionary <-> binary encoders

func mapToBytes(in map[string]interface{}) (out []byte, err error) {
	cbor := new(codec.CborHandle)
	encoder := codec.NewEncoderBytes(&out, cbor)
	err = encoder.Encode(in)
	return
}

func bytesToMap(in []byte) (out map[string]interface{}, err error) {
	cbor := new(codec.CborHandle)
	cbor.MapType = mapStringIntfType
	decoder := codec.NewDecoderBytes(in, cbor)
	err = decoder.Decode(&out)
	return
}

// versions <-> binary encoders, by way of Versions.Map()

func versionsToBytes(in schedule.Versions) (out []byte, err error) {
	cbor := new(codec.CborHandle)
	encoder := codec.NewEncoderBytes(&out, cbor)
	err = encoder.Encode(in.Map())
	return
}

func bytesToVersions(in []byte) (schedule.Versions, error) {
	var m map[string]int64
	cbor := new(codec.CborHandle)
	decoder := codec.NewDecoderBytes(in, cbor)
	if err := decoder.Decode(&m); err != nil {
		return schedule.Versions{}, err
	}
	return schedule.VersionsFromMap(m), nil
}
