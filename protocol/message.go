// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

// Message is one decoded protocol message. The set of implementations
// is closed: every concrete type lives in this file and consumers switch
// over them with a type switch.
type Message interface {
	// Kind returns the wire name this message is sent under.
	Kind() Kind

	// arguments returns the positional wire arguments in order.
	arguments() []any
}

// Credentials is the credential tuple carried by start and invoke.
type Credentials struct {
	AccessKeyID     string `cbor:"key"`
	SecretAccessKey string `cbor:"secret"`
	SessionToken    string `cbor:"session"`
}

// InvocationContext is the invocation-scoped caller context handed to
// the handler. ClientContext is JSON text, or nil when the caller gave
// none.
type InvocationContext struct {
	ClientContext         []byte `cbor:"client_context,omitempty"`
	CognitoIdentityID     string `cbor:"cognito_identity_id,omitempty"`
	CognitoIdentityPoolID string `cbor:"cognito_identity_pool_id,omitempty"`
}

// Start is sent to begin a session:
// [invocation_id, mode, handler, suppress_init, credentials].
type Start struct {
	InvocationID string
	Mode         string
	Handler      string
	SuppressInit bool
	Credentials  Credentials
}

func (Start) Kind() Kind { return KindStart }
func (m Start) arguments() []any {
	return []any{m.InvocationID, m.Mode, m.Handler, m.SuppressInit, m.Credentials}
}

// Invoke is an invocation request from the controller:
// [invocation_id, credentials, event, context, invoked_function_arn, trace_id].
type Invoke struct {
	InvocationID       string
	Credentials        Credentials
	Event              []byte
	Context            InvocationContext
	InvokedFunctionARN string
	TraceID            string
}

func (Invoke) Kind() Kind { return KindInvoke }
func (m Invoke) arguments() []any {
	return []any{m.InvocationID, m.Credentials, m.Event, m.Context, m.InvokedFunctionARN, m.TraceID}
}

// ChainedInvoke is an invocation request raised by the handler while
// its own invocation is in flight: [event, context]. Context is the raw
// caller context payload, possibly empty.
type ChainedInvoke struct {
	Event   []byte
	Context []byte
}

func (ChainedInvoke) Kind() Kind { return KindInvoke }
func (m ChainedInvoke) arguments() []any {
	return []any{m.Event, m.Context}
}

// StatusAccepted is the status carried by an [InvokeAccepted] reply.
const StatusAccepted = 202

// InvokeAccepted acknowledges a [ChainedInvoke]: [status].
type InvokeAccepted struct {
	Status int
}

func (InvokeAccepted) Kind() Kind { return KindInvoke }
func (m InvokeAccepted) arguments() []any {
	return []any{m.Status}
}

// Running acknowledges a start: [invocation_id].
type Running struct {
	InvocationID string
}

func (Running) Kind() Kind { return KindRunning }
func (m Running) arguments() []any {
	return []any{m.InvocationID}
}

// Done ends the init phase or an invocation:
// [invocation_id, error_type|nil, payload|nil]. An empty ErrorType is
// sent as nil; a nil Payload means the handler returned nothing.
type Done struct {
	InvocationID string
	ErrorType    string
	Payload      []byte
}

func (Done) Kind() Kind { return KindDone }
func (m Done) arguments() []any {
	var errorType any
	if m.ErrorType != "" {
		errorType = m.ErrorType
	}
	var payload any
	if m.Payload != nil {
		payload = m.Payload
	}
	return []any{m.InvocationID, errorType, payload}
}

// Fault reports a handler failure:
// [invocation_id, message, exception, trace].
type Fault struct {
	InvocationID string
	Message      string
	Exception    string
	Trace        string
}

func (Fault) Kind() Kind { return KindFault }
func (m Fault) arguments() []any {
	return []any{m.InvocationID, m.Message, m.Exception, m.Trace}
}

// XRayException carries tracing metadata: [payload].
type XRayException struct {
	Payload any
}

func (XRayException) Kind() Kind { return KindXRayException }
func (m XRayException) arguments() []any {
	return []any{m.Payload}
}

// UserInitStart marks the start of user initialization.
type UserInitStart struct{}

func (UserInitStart) Kind() Kind       { return KindUserInitStart }
func (UserInitStart) arguments() []any { return []any{} }

// UserInitEnd marks the end of user initialization.
type UserInitEnd struct{}

func (UserInitEnd) Kind() Kind       { return KindUserInitEnd }
func (UserInitEnd) arguments() []any { return []any{} }

// UserInvokeStart marks handler entry.
type UserInvokeStart struct{}

func (UserInvokeStart) Kind() Kind       { return KindUserInvokeStart }
func (UserInvokeStart) arguments() []any { return []any{} }

// UserInvokeEnd marks handler return.
type UserInvokeEnd struct{}

func (UserInvokeEnd) Kind() Kind       { return KindUserInvokeEnd }
func (UserInvokeEnd) arguments() []any { return []any{} }

// Console is a chunk of handler console output: [text].
type Console struct {
	Text string
}

func (Console) Kind() Kind { return KindConsole }
func (m Console) arguments() []any {
	return []any{m.Text}
}

// Log is raw handler log output: [bytes].
type Log struct {
	Data []byte
}

func (Log) Kind() Kind { return KindLog }
func (m Log) arguments() []any {
	return []any{m.Data}
}

// RemainingQuery asks how much of the timeout is left: [].
type RemainingQuery struct{}

func (RemainingQuery) Kind() Kind       { return KindRemaining }
func (RemainingQuery) arguments() []any { return []any{} }

// Remaining answers a [RemainingQuery]: [milliseconds]. Negative values
// mean the timeout has been exceeded.
type Remaining struct {
	Milliseconds int64
}

func (Remaining) Kind() Kind { return KindRemaining }
func (m Remaining) arguments() []any {
	return []any{m.Milliseconds}
}
