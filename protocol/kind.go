// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// Kind identifies a message name in the wire vocabulary.
type Kind uint8

const (
	// KindStart asks the bootstrap to load the handler and, unless
	// suppressed, run user initialization. Controller to sandbox.
	KindStart Kind = iota + 1

	// KindInvoke has three forms: an invocation request from the
	// controller, a chained invocation request from the handler, and
	// the controller's acceptance of a chained request.
	KindInvoke

	// KindRunning acknowledges a start message. Sandbox to controller.
	KindRunning

	// KindDone ends the init phase or an invocation.
	KindDone

	// KindFault reports a handler error. Always followed by done.
	KindFault

	// KindXRayException carries tracing metadata for a failure.
	KindXRayException

	KindUserInitStart
	KindUserInitEnd
	KindUserInvokeStart
	KindUserInvokeEnd

	// KindConsole carries a line of handler console output.
	KindConsole

	// KindLog carries raw handler log bytes.
	KindLog

	// KindRemaining is both the remaining-time query (no arguments)
	// and its reply (milliseconds).
	KindRemaining

	kindLimit
)

var kindNames = [kindLimit]string{
	KindStart:           "start",
	KindInvoke:          "invoke",
	KindRunning:         "running",
	KindDone:            "done",
	KindFault:           "fault",
	KindXRayException:   "xray_exception",
	KindUserInitStart:   "user_init_start",
	KindUserInitEnd:     "user_init_end",
	KindUserInvokeStart: "user_invoke_start",
	KindUserInvokeEnd:   "user_invoke_end",
	KindConsole:         "console",
	KindLog:             "log",
	KindRemaining:       "remaining",
}

// String returns the wire name of k.
func (k Kind) String() string {
	if k == 0 || k >= kindLimit {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// ParseKind returns the Kind whose wire name is name.
func ParseKind(name string) (Kind, bool) {
	for kind := KindStart; kind < kindLimit; kind++ {
		if kindNames[kind] == name {
			return kind, true
		}
	}
	return 0, false
}

// Kinds returns every Kind in the vocabulary, in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindLimit-1)
	for kind := KindStart; kind < kindLimit; kind++ {
		kinds = append(kinds, kind)
	}
	return kinds
}
