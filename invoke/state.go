// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import "fmt"

// State is the lifecycle state of a session.
type State int

const (
	// Uninitialized: no start message sent yet.
	Uninitialized State = iota
	// Starting: start sent, waiting for running.
	Starting
	// Running: running received, user init in progress.
	Running
	// InitDone: init finished, ready for the first invoke.
	InitDone
	// Invoking: invoke sent, waiting for done.
	Invoking
	// InvokeDone: an invocation finished, ready for the next.
	InvokeDone
	// Terminated: the process is gone. Reachable from any state.
	Terminated
)

var stateNames = [...]string{
	Uninitialized: "uninitialized",
	Starting:      "starting",
	Running:       "running",
	InitDone:      "init-done",
	Invoking:      "invoking",
	InvokeDone:    "invoke-done",
	Terminated:    "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// canSendStart reports whether a start message may be sent.
func (s State) canSendStart() bool {
	return s == Uninitialized || s == InvokeDone
}

// canSendInvoke reports whether an invoke message may be sent.
func (s State) canSendInvoke() bool {
	return s == InitDone || s == InvokeDone
}

// awaitingTerminal reports whether the sandbox owes a running or done
// message, which is when chained invokes are accepted and process death
// is turned into a synthesized done.
func (s State) awaitingTerminal() bool {
	return s == Starting || s == Running || s == Invoking
}
