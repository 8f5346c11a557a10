// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/sandbox-invoke/lib/clock"
	"github.com/bureau-foundation/sandbox-invoke/protocol"
)

// startMode is the invocation mode sent in every start message.
const startMode = "event"

// Session is one live bootstrap process and its protocol state. It is
// owned by a Controller and only touched from the goroutine driving it.
type Session struct {
	controller *Controller
	process    Process

	state        State
	invocationID string
	startedAt    time.Time

	// initialized is set once user init has run in this process.
	initialized   bool
	startSentAt   time.Time
	initDuration  time.Duration
	initReported  bool
	invokeStarted time.Time
	current       Request

	// result is the result of the invocation in flight, set by done.
	result     *Result
	lastResult *Result

	// chained holds requests raised by the handler, in arrival order.
	chained []Request

	// Nil once the corresponding channel has closed.
	controlIncoming <-chan protocol.Envelope
	consoleIncoming <-chan protocol.Envelope
}

func newSession(controller *Controller, process Process) *Session {
	return &Session{
		controller:      controller,
		process:         process,
		state:           Uninitialized,
		invocationID:    uuid.NewString(),
		startedAt:       controller.clock.Now(),
		controlIncoming: process.Control().Incoming(),
		consoleIncoming: process.Console().Incoming(),
	}
}

// SessionID returns the process's session id.
func (s *Session) SessionID() string { return s.process.SessionID() }

// InvocationID returns the id the next or current invocation uses.
func (s *Session) InvocationID() string { return s.invocationID }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// LastResult returns the most recent invocation result.
func (s *Session) LastResult() (Result, bool) {
	if s.lastResult == nil {
		return Result{}, false
	}
	return *s.lastResult, true
}

func (s *Session) sendStart() error {
	if !s.state.canSendStart() {
		return fmt.Errorf("cannot send start in state %s", s.state)
	}
	message := protocol.Start{
		InvocationID: s.invocationID,
		Mode:         startMode,
		Handler:      s.controller.config.Handler,
		SuppressInit: s.initialized,
		Credentials:  s.controller.config.Credentials,
	}
	s.startSentAt = s.controller.clock.Now()
	if err := s.send(message); err != nil {
		return err
	}
	s.state = Starting
	return nil
}

func (s *Session) sendInvoke(request Request) error {
	if !s.state.canSendInvoke() {
		return fmt.Errorf("cannot send invoke in state %s", s.state)
	}
	now := s.controller.clock.Now()
	message := protocol.Invoke{
		InvocationID:       s.invocationID,
		Credentials:        s.controller.config.Credentials,
		Event:              request.Event,
		Context:            request.Context,
		InvokedFunctionARN: request.InvokedFunctionARN,
		TraceID:            traceID(now),
	}
	s.current = request
	s.result = nil
	s.invokeStarted = now
	writeStartLine(s.controller.diagnostics, s.invocationID, s.controller.config.Version)
	if err := s.send(message); err != nil {
		return err
	}
	s.state = Invoking
	return nil
}

// send writes to the control channel. A write that fails because the
// process is gone is not an error: the next poll reports the exit.
func (s *Session) send(message protocol.Message) error {
	err := s.process.Control().Send(message)
	if err == nil {
		return nil
	}
	timer := s.controller.clock.NewTimer(s.controller.config.PollInterval)
	defer timer.Stop()
	select {
	case <-s.process.Exited():
	case <-timer.C():
		return fmt.Errorf("sending %s: %w", message.Kind(), err)
	}
	s.controller.logger.Debug("send to exited bootstrap", "message", message.Kind().String(), "error", err)
	return nil
}

// await polls until the session reaches target or Terminated.
func (s *Session) await(ctx context.Context, target State) error {
	for s.state != target && s.state != Terminated {
		if err := s.poll(ctx); err != nil {
			return err
		}
	}
	return nil
}

// poll waits at most one poll interval for one message on either channel
// and checks for process exit.
func (s *Session) poll(ctx context.Context) error {
	timer := s.controller.clock.NewTimer(s.controller.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case envelope, ok := <-s.controlIncoming:
		if !ok {
			s.channelClosed(s.process.Control())
			s.controlIncoming = nil
			return nil
		}
		return s.handle(envelope)
	case envelope, ok := <-s.consoleIncoming:
		if !ok {
			s.channelClosed(s.process.Console())
			s.consoleIncoming = nil
			return nil
		}
		return s.handleConsole(envelope)
	case <-s.process.Exited():
		return s.processExited()
	case <-timer.C():
		return nil
	}
}

func (s *Session) channelClosed(channel *protocol.Channel) {
	if err := channel.Err(); err != nil {
		s.controller.logger.Warn("channel closed with error", "channel", channel.Name(), "error", err)
		return
	}
	s.controller.logger.Debug("channel closed", "channel", channel.Name())
}

// processExited delivers whatever the process sent before dying, then
// synthesizes an unhandled done if it still owed one.
func (s *Session) processExited() error {
	if err := s.drain(); err != nil {
		return err
	}

	previous := s.state
	s.state = Terminated
	s.controller.logger.Warn("bootstrap exited", "state", previous.String(), "invocation", s.invocationID)

	if previous == Invoking {
		return s.handleDone(protocol.Done{InvocationID: s.invocationID, ErrorType: ErrorTypeUnhandled})
	}
	return nil
}

// drain handles buffered messages until both channels close or one
// poll interval passes without traffic.
func (s *Session) drain() error {
	for s.controlIncoming != nil || s.consoleIncoming != nil {
		quiet, err := s.drainOne()
		if err != nil || quiet {
			return err
		}
	}
	return nil
}

// drainOne handles at most one buffered message. quiet reports a poll
// interval with no traffic.
func (s *Session) drainOne() (quiet bool, err error) {
	timer := s.controller.clock.NewTimer(s.controller.config.PollInterval)
	defer timer.Stop()
	select {
	case envelope, ok := <-s.controlIncoming:
		if !ok {
			s.controlIncoming = nil
			return false, nil
		}
		return false, s.handle(envelope)
	case envelope, ok := <-s.consoleIncoming:
		if !ok {
			s.consoleIncoming = nil
			return false, nil
		}
		return false, s.handleConsole(envelope)
	case <-timer.C():
		return true, nil
	}
}

func (s *Session) handle(envelope protocol.Envelope) error {
	message, err := protocol.Decode(envelope)
	if err != nil {
		return &ProtocolViolationError{State: s.state, Message: envelope.Name, Reason: "malformed message", Err: err}
	}
	return s.dispatch(message)
}

// handleConsole accepts only passive output. Anything that would drive
// the state machine must arrive on the control channel.
func (s *Session) handleConsole(envelope protocol.Envelope) error {
	message, err := protocol.Decode(envelope)
	if err != nil {
		return &ProtocolViolationError{State: s.state, Message: envelope.Name, Reason: "malformed console message", Err: err}
	}
	switch message := message.(type) {
	case protocol.Console:
		s.mirror([]byte(message.Text))
		return nil
	case protocol.Log:
		s.mirror(message.Data)
		return nil
	default:
		return s.violation(message.Kind(), "not allowed on the console channel")
	}
}

// dispatch routes one message. Every concrete protocol.Message type has
// a case.
func (s *Session) dispatch(message protocol.Message) error {
	logger := s.controller.logger
	diagnostics := s.controller.diagnostics

	switch message := message.(type) {
	case protocol.Running:
		return s.handleRunning(message)
	case protocol.Done:
		return s.handleDone(message)
	case protocol.ChainedInvoke:
		return s.handleChainedInvoke(message)
	case protocol.Fault:
		fmt.Fprintf(diagnostics, "%s: %s\n", message.Exception, message.Message)
		if message.Trace != "" {
			fmt.Fprintln(diagnostics, message.Trace)
		}
		return nil
	case protocol.XRayException:
		logger.Debug("xray exception", "invocation", s.invocationID, "payload", message.Payload)
		return nil
	case protocol.UserInitStart:
		logger.Debug("user init started", "invocation", s.invocationID)
		return nil
	case protocol.UserInitEnd:
		s.initDuration = clock.Since(s.controller.clock, s.startSentAt)
		logger.Debug("user init finished", "invocation", s.invocationID, "duration", s.initDuration)
		return nil
	case protocol.UserInvokeStart:
		logger.Debug("handler entered", "invocation", s.invocationID)
		return nil
	case protocol.UserInvokeEnd:
		logger.Debug("handler returned", "invocation", s.invocationID)
		return nil
	case protocol.Console:
		s.mirror([]byte(message.Text))
		return nil
	case protocol.Log:
		s.mirror(message.Data)
		return nil
	case protocol.RemainingQuery:
		return s.send(protocol.Remaining{Milliseconds: s.remaining().Milliseconds()})
	case protocol.Start, protocol.Invoke, protocol.InvokeAccepted, protocol.Remaining:
		return s.violation(message.Kind(), "sent by the sandbox but only valid from the controller")
	default:
		return s.violation(message.Kind(), fmt.Sprintf("no handler for %T", message))
	}
}

// mirror copies sandbox output verbatim to the diagnostics sink.
func (s *Session) mirror(data []byte) {
	if _, err := s.controller.diagnostics.Write(data); err != nil {
		s.controller.logger.Warn("writing sandbox output to diagnostics", "error", err)
	}
}

func (s *Session) violation(kind protocol.Kind, reason string) error {
	return &ProtocolViolationError{State: s.state, Message: kind.String(), Reason: reason}
}

func (s *Session) handleRunning(message protocol.Running) error {
	if s.state != Starting {
		return s.violation(protocol.KindRunning, "unexpected")
	}
	if message.InvocationID != s.invocationID {
		return s.violation(protocol.KindRunning,
			fmt.Sprintf("invocation id %q does not match %q", message.InvocationID, s.invocationID))
	}
	s.state = Running
	return nil
}

func (s *Session) handleDone(message protocol.Done) error {
	switch s.state {
	case Running:
		if s.initDuration == 0 {
			s.initDuration = clock.Since(s.controller.clock, s.startSentAt)
		}
		s.initialized = true
		s.state = InitDone
		s.controller.logger.Debug("init done", "session", s.SessionID(), "duration", s.initDuration)
		return nil
	case Invoking, Terminated:
	default:
		return s.violation(protocol.KindDone, "unexpected")
	}

	if message.InvocationID != s.invocationID {
		s.controller.logger.Warn("done for a different invocation",
			"got", message.InvocationID, "want", s.invocationID)
	}

	elapsed := clock.Since(s.controller.clock, s.invokeStarted)
	result := Result{
		InvocationID:   s.invocationID,
		Payload:        message.Payload,
		ErrorType:      message.ErrorType,
		Duration:       elapsed,
		BilledDuration: BilledDuration(elapsed),
		MaxMemoryUsed:  s.process.MaxMemoryUsed(),
		Request:        s.current,
	}
	if message.Payload != nil {
		var parsed any
		if err := json.Unmarshal(message.Payload, &parsed); err != nil {
			s.controller.logger.Debug("response payload is not JSON", "invocation", s.invocationID, "error", err)
		} else {
			result.ParsedPayload = parsed
		}
	}
	s.finish(result)

	if s.state == Invoking {
		s.state = InvokeDone
		s.invocationID = uuid.NewString()
	}
	return nil
}

// finish records result and writes its summary lines.
func (s *Session) finish(result Result) {
	s.result = &result
	s.lastResult = &result

	var initDuration time.Duration
	if !s.initReported {
		initDuration = s.initDuration
		s.initReported = true
	}
	writeEndLine(s.controller.diagnostics, result.InvocationID)
	writeReportLine(s.controller.diagnostics, result, s.controller.config.MemoryMB, initDuration)
}

// failColdStart produces the result for a request whose session died
// before initialization finished.
func (s *Session) failColdStart(request Request) Result {
	s.current = request
	writeStartLine(s.controller.diagnostics, s.invocationID, s.controller.config.Version)
	result := Result{
		InvocationID:   s.invocationID,
		ErrorType:      ErrorTypeUnhandled,
		BilledDuration: BilledDuration(0),
		Request:        request,
	}
	s.finish(result)
	return result
}

func (s *Session) handleChainedInvoke(message protocol.ChainedInvoke) error {
	if !s.state.awaitingTerminal() {
		return s.violation(protocol.KindInvoke, "chained invoke outside an invocation")
	}
	request, err := s.controller.newRequest(message.Event, message.Context, true)
	if err != nil {
		s.controller.logger.Warn("chained invoke context is malformed, using empty context", "error", err)
		request = Request{Event: message.Event, InvokedFunctionARN: s.controller.functionARN, Chained: true}
	}
	s.chained = append(s.chained, request)
	return s.send(protocol.InvokeAccepted{Status: protocol.StatusAccepted})
}

// remaining is the time left before the timeout. Negative once the
// timeout has passed. Outside an invocation it is the full timeout.
func (s *Session) remaining() time.Duration {
	timeout := s.controller.config.Timeout
	if s.state != Invoking {
		return timeout
	}
	return timeout - clock.Since(s.controller.clock, s.invokeStarted)
}

// takeResult returns and clears the result of the invocation in flight.
func (s *Session) takeResult() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	result := *s.result
	s.result = nil
	return result, true
}

// takeChained returns and clears the pending chained requests.
func (s *Session) takeChained() []Request {
	chained := s.chained
	s.chained = nil
	return chained
}

// processGone reports, without blocking, whether the process has exited.
func (s *Session) processGone() bool {
	select {
	case <-s.process.Exited():
		return true
	default:
		return false
	}
}
