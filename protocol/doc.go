// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the message vocabulary spoken between the
// invocation controller and a sandboxed bootstrap process.
//
// Every message on the wire is an [Envelope]: a CBOR map carrying a
// message name and an ordered list of positional arguments. The name
// vocabulary is fixed (see [Kind]); argument order and arity are part of
// the contract with the bootstrap and are defined by the concrete
// message types in message.go. Consecutive envelopes form a CBOR
// sequence (RFC 8742), so no extra length framing is needed.
//
// Decoding is two-step. A [Channel] reader goroutine decodes raw
// envelopes in arrival order; the consumer then calls [Decode], which
// looks the name up in a per-kind table and produces one concrete
// [Message]. Unknown names and malformed arguments come back as a
// [*DecodeError]; there is no silent-ignore path.
//
// The control channel carries the full vocabulary. The console channel
// carries only console and log traffic in the same envelope.
package protocol
