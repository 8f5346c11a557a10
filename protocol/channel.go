// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/sandbox-invoke/lib/codec"
)

// Channel is a duplex message channel over a stream connection.
//
// A single reader goroutine decodes envelopes and forwards them on
// [Channel.Incoming] in arrival order. It does nothing else: message
// decoding and all protocol state belong to the consumer. Send is safe
// for concurrent use.
type Channel struct {
	name string
	conn io.ReadWriteCloser

	writeMutex sync.Mutex
	encoder    *codec.Encoder

	incoming   chan Envelope
	closed     chan struct{}
	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error

	// readErr is written by the reader goroutine before it closes
	// incoming, so it is safe to read once Incoming is observed closed.
	readErr error
}

// NewChannel wraps conn and starts the reader goroutine. name labels
// errors ("control", "console"). The channel owns conn from here on.
func NewChannel(name string, conn io.ReadWriteCloser) *Channel {
	channel := &Channel{
		name:       name,
		conn:       conn,
		encoder:    codec.NewEncoder(conn),
		incoming:   make(chan Envelope),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go channel.read()
	return channel
}

// Name returns the label given to NewChannel.
func (c *Channel) Name() string {
	return c.name
}

// Incoming returns the envelopes received from the peer, in order. The
// channel is closed at end of stream, on a framing error, or on Close.
func (c *Channel) Incoming() <-chan Envelope {
	return c.incoming
}

// Err returns the error that ended the read side, or nil for a clean
// end of stream or a local Close. Only meaningful after Incoming has
// been observed closed.
func (c *Channel) Err() error {
	return c.readErr
}

// Send encodes and writes one message.
func (c *Channel) Send(message Message) error {
	envelope, err := Encode(message)
	if err != nil {
		return err
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if err := c.encoder.Encode(envelope); err != nil {
		return fmt.Errorf("%s channel: sending %s: %w", c.name, envelope.Name, err)
	}
	return nil
}

// Close closes the connection and waits for the reader goroutine to
// exit. Safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
		<-c.readerDone
	})
	return c.closeErr
}

func (c *Channel) read() {
	defer close(c.readerDone)
	defer close(c.incoming)

	decoder := codec.NewDecoder(c.conn)
	for {
		var envelope Envelope
		if err := decoder.Decode(&envelope); err != nil {
			if !errors.Is(err, io.EOF) && !c.isClosed() {
				c.readErr = fmt.Errorf("%s channel: %w", c.name, err)
			}
			return
		}
		select {
		case c.incoming <- envelope:
		case <-c.closed:
			return
		}
	}
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
