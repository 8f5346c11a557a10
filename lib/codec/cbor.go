// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown struct fields are ignored.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Protocol arguments decoded into any (client context, fault
		// traces) must come out as map[string]any so they can be
		// handed to encoding/json unchanged. Struct targets are
		// unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// A bootstrap that misbehaves must not be able to exhaust
		// memory with a single oversized argument list.
		MaxArrayElements: 4096,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value. Protocol envelopes carry
// their positional arguments as RawMessage so each argument is decoded
// into its own target type once the message name is known.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder that writes to w. CBOR items are
// self-delimiting, so consecutive Encode calls form a valid CBOR
// sequence (RFC 8742) with no extra framing.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder that reads one item per Decode
// call from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for
// data. Used in protocol error messages so a malformed argument is
// reported in readable form.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
