// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/sandbox-invoke/lib/codec"
)

// sampleMessages has at least one message per Kind, covering every form.
var sampleMessages = []Message{
	Start{
		InvocationID: "5f1c",
		Mode:         "event",
		Handler:      "index.handler",
		SuppressInit: true,
		Credentials:  Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret", SessionToken: "token"},
	},
	Invoke{
		InvocationID: "5f1c",
		Credentials:  Credentials{AccessKeyID: "AKID"},
		Event:        []byte(`{"key":"value"}`),
		Context: InvocationContext{
			ClientContext:     []byte(`{"custom":{"a":1}}`),
			CognitoIdentityID: "us-east-1:abc",
		},
		InvokedFunctionARN: "arn:aws:lambda:us-east-1:000000000000:function:echo",
		TraceID:            "Root=1-00000000-000000000000000000000000;Parent=0000000000000000;Sampled=0",
	},
	ChainedInvoke{Event: []byte(`{"n":2}`), Context: []byte(`{}`)},
	InvokeAccepted{Status: StatusAccepted},
	Running{InvocationID: "5f1c"},
	Done{InvocationID: "5f1c", ErrorType: "handled", Payload: []byte(`{"errorMessage":"boom"}`)},
	Done{InvocationID: "5f1c"},
	Fault{InvocationID: "5f1c", Message: "boom", Exception: "Error", Trace: "at handler (index.js:3)"},
	XRayException{Payload: map[string]any{"working_directory": "/var/task"}},
	UserInitStart{},
	UserInitEnd{},
	UserInvokeStart{},
	UserInvokeEnd{},
	Console{Text: "hello from the handler\n"},
	Log{Data: []byte("raw log line\n")},
	RemainingQuery{},
	Remaining{Milliseconds: -42},
}

func TestEveryKindDecodes(t *testing.T) {
	t.Parallel()

	covered := make(map[Kind]bool)
	for _, message := range sampleMessages {
		covered[message.Kind()] = true
	}
	for _, kind := range Kinds() {
		if decoders[kind] == nil {
			t.Errorf("no decoder registered for %s", kind)
		}
		if !covered[kind] {
			t.Errorf("sampleMessages has no %s message", kind)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	for _, message := range sampleMessages {
		t.Run(reflect.TypeOf(message).Name(), func(t *testing.T) {
			t.Parallel()

			envelope, err := Encode(message)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if envelope.Name != message.Kind().String() {
				t.Errorf("envelope name = %q, want %q", envelope.Name, message.Kind())
			}

			// Go through the wire form so the envelope itself is
			// exercised, not just its arguments.
			data, err := codec.Marshal(envelope)
			if err != nil {
				t.Fatalf("Marshal envelope: %v", err)
			}
			var received Envelope
			if err := codec.Unmarshal(data, &received); err != nil {
				t.Fatalf("Unmarshal envelope: %v", err)
			}

			decoded, err := Decode(received)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, message) {
				t.Errorf("decoded %#v, want %#v", decoded, message)
			}
		})
	}
}

func TestDoneNilArguments(t *testing.T) {
	t.Parallel()

	envelope, err := Encode(Done{InvocationID: "abc"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for index := 1; index <= 2; index++ {
		if !bytes.Equal(envelope.Args[index], []byte{0xf6}) {
			t.Errorf("argument %d = %x, want CBOR null", index, []byte(envelope.Args[index]))
		}
	}

	decoded, err := Decode(envelope)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	done := decoded.(Done)
	if done.ErrorType != "" || done.Payload != nil {
		t.Errorf("got error type %q payload %q, want both absent", done.ErrorType, done.Payload)
	}
}

func TestDecodeAcceptsTextPayloads(t *testing.T) {
	t.Parallel()

	envelope := Envelope{Name: "invoke", Args: []codec.RawMessage{
		mustMarshal(t, `{"chained":true}`),
		mustMarshal(t, nil),
	}}
	decoded, err := Decode(envelope)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	chained, ok := decoded.(ChainedInvoke)
	if !ok {
		t.Fatalf("decoded %T, want ChainedInvoke", decoded)
	}
	if string(chained.Event) != `{"chained":true}` {
		t.Errorf("event = %q, want %q", chained.Event, `{"chained":true}`)
	}
	if chained.Context != nil {
		t.Errorf("context = %q, want nil", chained.Context)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		envelope Envelope
	}{
		{"unknown name", Envelope{Name: "shutdown"}},
		{"empty name", Envelope{}},
		{"running without id", Envelope{Name: "running"}},
		{"running id not text", Envelope{Name: "running", Args: []codec.RawMessage{mustMarshal(t, 7)}}},
		{"done too short", Envelope{Name: "done", Args: []codec.RawMessage{mustMarshal(t, "abc")}}},
		{"invoke three arguments", Envelope{Name: "invoke", Args: []codec.RawMessage{
			mustMarshal(t, "a"), mustMarshal(t, "b"), mustMarshal(t, "c"),
		}}},
		{"remaining two arguments", Envelope{Name: "remaining", Args: []codec.RawMessage{
			mustMarshal(t, 1), mustMarshal(t, 2),
		}}},
		{"marker with argument", Envelope{Name: "user_init_start", Args: []codec.RawMessage{mustMarshal(t, 1)}}},
		{"start suppress not bool", Envelope{Name: "start", Args: []codec.RawMessage{
			mustMarshal(t, "id"), mustMarshal(t, "event"), mustMarshal(t, "h"),
			mustMarshal(t, "yes"), mustMarshal(t, Credentials{}),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			message, err := Decode(tt.envelope)
			if err == nil {
				t.Fatalf("Decode returned %#v, want error", message)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("error %v is %T, want *DecodeError", err, err)
			}
			if decodeErr.Name != tt.envelope.Name {
				t.Errorf("DecodeError.Name = %q, want %q", decodeErr.Name, tt.envelope.Name)
			}
		})
	}
}

func mustMarshal(t *testing.T, value any) codec.RawMessage {
	t.Helper()
	data, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("Marshal(%v): %v", value, err)
	}
	return data
}
