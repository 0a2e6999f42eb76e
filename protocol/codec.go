// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

package protocol

import (
	"errors"
	"io"
	"reflect"

	"github.com/algorand/go-codec/codec"
)

// ErrInvalidObject is used to state that an object decoding has failed because it's invalid.
var ErrInvalidObject = errors.New("unmarshalled object is invalid")

// JSONHandle is used to instantiate JSON encoders and decoders
// with our settings. Map keys are sorted so that the same document
// always encodes to the same bytes, which signatures depend on.
var JSONHandle *codec.JsonHandle

// JSONIndentHandle is the same as JSONHandle but pretty-prints its output.
var JSONIndentHandle *codec.JsonHandle

// Decoder is our interface for a thing that can decode objects.
type Decoder interface {
	Decode(objptr interface{}) error
}

func init() {
	JSONHandle = new(codec.JsonHandle)
	JSONHandle.Canonical = true
	JSONHandle.HTMLCharsAsIs = true
	JSONHandle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	JSONHandle.ErrorIfNoField = false

	JSONIndentHandle = new(codec.JsonHandle)
	JSONIndentHandle.Canonical = JSONHandle.Canonical
	JSONIndentHandle.HTMLCharsAsIs = JSONHandle.HTMLCharsAsIs
	JSONIndentHandle.MapType = JSONHandle.MapType
	JSONIndentHandle.Indent = 2
}

// EncodeJSON returns a JSON-encoded byte buffer for a given object
func EncodeJSON(obj interface{}) []byte {
	var b []byte
	enc := codec.NewEncoderBytes(&b, JSONHandle)
	enc.MustEncode(obj)
	return b
}

// EncodeJSONIndent is like EncodeJSON but with human-readable indentation.
func EncodeJSONIndent(obj interface{}) []byte {
	var b []byte
	enc := codec.NewEncoderBytes(&b, JSONIndentHandle)
	enc.MustEncode(obj)
	return b
}

// DecodeJSON attempts to decode a JSON-encoded byte buffer into an
// object instance pointed to by objptr
func DecodeJSON(b []byte, objptr interface{}) error {
	dec := codec.NewDecoderBytes(b, JSONHandle)
	return dec.Decode(objptr)
}

// NewJSONEncoder returns an encoder object writing bytes into [w].
func NewJSONEncoder(w io.Writer) *codec.Encoder {
	return codec.NewEncoder(w, JSONHandle)
}

// NewJSONDecoder returns a json decoder object reading bytes from [r].
func NewJSONDecoder(r io.Reader) Decoder {
	return codec.NewDecoder(r, JSONHandle)
}

// EncodeJSONErr is like EncodeJSON but reports encoding failures instead of panicking.
func EncodeJSONErr(obj interface{}) ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, JSONHandle)
	err := enc.Encode(obj)
	if err != nil {
		return nil, err
	}
	return b, nil
}
