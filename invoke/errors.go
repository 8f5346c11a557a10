// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation matches every ProtocolViolationError via errors.Is.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrProcessExited is returned by Start when the bootstrap dies before
// finishing initialization. Invoke reports the same condition as a
// failed result instead.
var ErrProcessExited = errors.New("bootstrap exited during initialization")

// ProtocolViolationError reports a message the sandbox must not send:
// an unknown name, malformed arguments, a running id that does not
// match, or a message that is invalid in the current state. It is fatal
// to the session and never retried.
type ProtocolViolationError struct {
	// State is the session state when the message arrived.
	State State

	// Message is the wire name of the offending message, if known.
	Message string

	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

func (e *ProtocolViolationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("protocol violation in state %s: %s", e.State, e.Reason)
	}
	return fmt.Sprintf("protocol violation in state %s: %s: %s", e.State, e.Message, e.Reason)
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrProtocolViolation.
func (e *ProtocolViolationError) Is(target error) bool {
	return target == ErrProtocolViolation
}
