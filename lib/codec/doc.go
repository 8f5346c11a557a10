// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// the sandbox control and console channels.
//
// Two serialization formats are used with a clear boundary:
//
//   - JSON for payloads that belong to the user: event bodies, context
//     files, handler results, and the CLI's result output.
//   - CBOR for the harness↔bootstrap wire protocol: every message on
//     the control and console channels is one CBOR item.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical message always produces identical bytes, which keeps
// protocol tests byte-comparable.
//
// For stream-oriented operations (the sandbox socketpairs):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Wire types use `cbor` struct tags. Never put both `cbor` and `json`
// tags on the same field.
package codec
