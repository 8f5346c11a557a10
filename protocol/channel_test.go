// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/bureau-foundation/sandbox-invoke/lib/codec"
	"github.com/bureau-foundation/sandbox-invoke/lib/testutil"
)

const channelTimeout = 5 * time.Second

func TestChannelPreservesOrder(t *testing.T) {
	t.Parallel()

	local, remote := net.Pipe()
	controller := NewChannel("control", local)
	sandbox := NewChannel("sandbox", remote)
	defer controller.Close()
	defer sandbox.Close()

	sent := []Message{
		Running{InvocationID: "a"},
		Console{Text: "one"},
		ChainedInvoke{Event: []byte("1"), Context: []byte("{}")},
		ChainedInvoke{Event: []byte("2"), Context: []byte("{}")},
		Done{InvocationID: "a", Payload: []byte("null")},
	}
	go func() {
		for _, message := range sent {
			if err := sandbox.Send(message); err != nil {
				return
			}
		}
	}()

	for index, want := range sent {
		envelope := testutil.RequireReceive(t, controller.Incoming(), channelTimeout, "message %d", index)
		got, err := Decode(envelope)
		if err != nil {
			t.Fatalf("message %d: Decode: %v", index, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("message %d = %#v, want %#v", index, got, want)
		}
	}
}

func TestChannelEndOfStream(t *testing.T) {
	t.Parallel()

	local, remote := net.Pipe()
	controller := NewChannel("control", local)
	defer controller.Close()

	remote.Close()

	select {
	case envelope, ok := <-controller.Incoming():
		if ok {
			t.Fatalf("received %+v after peer closed, want closed channel", envelope)
		}
	case <-time.After(channelTimeout): //nolint:realclock test hang prevention
		t.Fatal("Incoming not closed after peer closed")
	}
	if err := controller.Err(); err != nil {
		t.Errorf("Err() = %v after clean end of stream, want nil", err)
	}
}

func TestChannelFramingError(t *testing.T) {
	t.Parallel()

	local, remote := net.Pipe()
	controller := NewChannel("console", local)
	defer controller.Close()

	// A bare integer is valid CBOR but not an envelope.
	go func() {
		data, _ := codec.Marshal(42)
		remote.Write(data)
	}()

	select {
	case envelope, ok := <-controller.Incoming():
		if ok {
			t.Fatalf("received %+v, want closed channel", envelope)
		}
	case <-time.After(channelTimeout): //nolint:realclock test hang prevention
		t.Fatal("Incoming not closed after framing error")
	}
	if controller.Err() == nil {
		t.Error("Err() = nil after framing error, want error")
	}
	remote.Close()
}

func TestChannelCloseIdempotent(t *testing.T) {
	t.Parallel()

	local, remote := net.Pipe()
	defer remote.Close()
	controller := NewChannel("control", local)

	if err := controller.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := controller.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, ok := <-controller.Incoming(); ok {
		t.Error("Incoming still open after Close")
	}
	if err := controller.Err(); err != nil {
		t.Errorf("Err() = %v after local Close, want nil", err)
	}
	if err := controller.Send(RemainingQuery{}); err == nil {
		t.Error("Send after Close succeeded, want error")
	}
}

func TestChannelName(t *testing.T) {
	t.Parallel()

	local, remote := net.Pipe()
	defer remote.Close()
	channel := NewChannel("console", local)
	defer channel.Close()

	if channel.Name() != "console" {
		t.Errorf("Name() = %q, want %q", channel.Name(), "console")
	}
}
