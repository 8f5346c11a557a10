// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the sandbox, protocol, and
// invoke tests.
//
// [RequireReceive] and [RequireClosed] bound a wait on a channel so a
// stalled exchange with a bootstrap fails the test instead of hanging
// it. Durations under test run on lib/clock; these wall-clock timeouts
// are only hang prevention.
//
// [TempDir] makes a directory under /tmp for stub bootstraps and
// package directories a spawned child has to reach.
package testutil
