// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package invoke drives a bootstrap process through the invocation
// protocol.
//
// A [Controller] owns at most one [Session]. The first invocation (or an
// explicit [Controller.Start]) cold-starts one: it launches the process,
// sends start, and waits for running and the init done. Every
// invocation after that reuses the warm session:
//
//	Uninitialized -> Starting -> Running -> InitDone -> Invoking -> InvokeDone -> Invoking ...
//
// Terminated is reachable from every state. A session that reaches it
// is never revived; the next invocation cold-starts a new one.
//
// All protocol state lives on the goroutine that ranges over
// [Controller.Invoke]. The only waiting it does is a bounded poll: one
// poll interval for a message on either channel, with process exit
// checked on every iteration. A process that dies while an invocation
// is outstanding produces a done with ErrorType "unhandled", exactly as
// if the bootstrap had sent it. Dying during cold start fails the
// pending event the same way.
//
// Handlers may invoke the function themselves. Such chained requests
// are acknowledged immediately with status 202 and queued behind the
// caller's remaining events, first in first out across all nesting
// levels. Their results follow in the same result sequence, after the
// results for the caller's own events.
//
// Console and log traffic, fault reports, and one START/END/REPORT
// triple per invocation go to [Config].Diagnostics. Billing rounds up
// to whole 100 ms units with a one-unit minimum (see [BilledDuration]).
package invoke
