// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used for invocation
// accounting.
//
// Elapsed and billed durations, remaining-time answers, the delay
// between invocations, the poll interval, and the terminate grace
// period are all measured on a [Clock]. Production code uses [Real].
// Tests use [Fake], which stands still until [FakeClock.Advance]:
//
//	c := clock.Fake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
//	controller, _ := invoke.New(invoke.Config{Clock: c, ...})
//	// in the scripted sandbox, between invoke and done:
//	c.Advance(250 * time.Millisecond) // bills 300ms
//
// A poll loop on a fake clock never times out on its own; it only
// moves on traffic, process exit, or an Advance. Loops stop their
// timers, so [FakeClock.Pending] counts only live waits.
package clock
