// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash identifies the bootstrap binary by content.
//
// The bootstrap is a vendored artifact copied between machines. When an
// invocation behaves differently on two of them, the process manager's
// "bootstrap identity" log line says whether the same file ran on both.
package binhash
