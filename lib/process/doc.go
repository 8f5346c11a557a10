// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler.
//
// sandbox-invoke writes user-facing diagnostics (console mirroring,
// REPORT lines) to an injected writer and structured records to slog.
// The one place raw stderr output is legitimate is main(), after run()
// fails and before or after the logger exists. [Fatal] is that place.
package process
