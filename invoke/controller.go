// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sandbox-invoke/lib/clock"
	"github.com/bureau-foundation/sandbox-invoke/protocol"
	"github.com/bureau-foundation/sandbox-invoke/sandbox"
)

// DefaultPollInterval bounds each wait for a protocol message when
// Config.PollInterval is zero.
const DefaultPollInterval = 100 * time.Millisecond

// Config holds configuration for creating a Controller.
type Config struct {
	FunctionName string
	Handler      string

	// Qualifier and Version default to $LATEST.
	Qualifier string
	Version   string

	Region    string
	AccountID string
	MemoryMB  int

	// Timeout is reported through remaining-time queries. The
	// controller never enforces it.
	Timeout time.Duration

	Credentials protocol.Credentials

	// PollInterval bounds how long one wait for a message may take, and
	// so how late process death is noticed.
	PollInterval time.Duration

	// InvokeDelay is slept between successive top-level invocations.
	InvokeDelay time.Duration

	// Launcher starts bootstrap processes. Required.
	Launcher Launcher

	// Diagnostics receives sandbox console and log output, fault
	// reports, and the START/END/REPORT lines. Nil discards.
	Diagnostics io.Writer

	// Clock drives all duration, billing, and remaining-time math.
	// Nil means clock.Real().
	Clock clock.Clock

	// Logger for lifecycle events. Nil means slog.Default().
	Logger *slog.Logger
}

// Controller drives a bootstrap process through cold start and any
// number of invocations. It owns at most one Session at a time. A
// Controller is not safe for concurrent use.
type Controller struct {
	config      Config
	launcher    Launcher
	clock       clock.Clock
	logger      *slog.Logger
	diagnostics io.Writer
	functionARN string

	session *Session
}

// New validates config and returns a Controller. Nothing is spawned
// until Start or the first invocation.
func New(config Config) (*Controller, error) {
	if config.Launcher == nil {
		return nil, &sandbox.ConfigurationError{Name: "launcher", Reason: "required"}
	}
	if config.FunctionName == "" {
		return nil, &sandbox.ConfigurationError{Name: "function name", Reason: "required"}
	}
	if config.Handler == "" {
		return nil, &sandbox.ConfigurationError{Name: "handler", Reason: "required"}
	}
	if config.MemoryMB <= 0 {
		return nil, &sandbox.ConfigurationError{Name: "memory", Reason: fmt.Sprintf("must be positive, got %d", config.MemoryMB)}
	}
	if config.Timeout <= 0 {
		return nil, &sandbox.ConfigurationError{Name: "timeout", Reason: fmt.Sprintf("must be positive, got %s", config.Timeout)}
	}
	if config.PollInterval < 0 || config.InvokeDelay < 0 {
		return nil, &sandbox.ConfigurationError{Name: "poll interval/invoke delay", Reason: "must not be negative"}
	}

	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Qualifier == "" {
		config.Qualifier = latestQualifier
	}
	if config.Version == "" {
		config.Version = latestQualifier
	}

	controllerClock := config.Clock
	if controllerClock == nil {
		controllerClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	diagnostics := config.Diagnostics
	if diagnostics == nil {
		diagnostics = io.Discard
	}

	return &Controller{
		config:      config,
		launcher:    config.Launcher,
		clock:       controllerClock,
		logger:      logger,
		diagnostics: diagnostics,
		functionARN: FunctionARN(config.Region, config.AccountID, config.FunctionName, config.Qualifier),
	}, nil
}

// State returns the current session's state, or Uninitialized before
// the first session.
func (c *Controller) State() State {
	if c.session == nil {
		return Uninitialized
	}
	return c.session.state
}

// Session returns the current session, or nil before the first one. A
// terminated session stays visible until the next cold start.
func (c *Controller) Session() *Session {
	return c.session
}

// Start cold-starts a session if none is live: it spawns the bootstrap,
// sends start, and waits for init to finish. Returns ErrProcessExited if
// the bootstrap dies first.
func (c *Controller) Start(ctx context.Context) error {
	if c.live() {
		return nil
	}
	if err := c.coldStart(ctx); err != nil {
		return err
	}
	if c.session.state == Terminated {
		return ErrProcessExited
	}
	return nil
}

// Invoke returns a lazy sequence of results: one per event, in order,
// followed by the results of chained invokes the handlers raised.
// Chained requests join a single first-in first-out queue behind the
// remaining events, across all nesting levels, so the first len(events)
// results always answer events in order. contexts pairs with events by
// index; missing entries mean an empty context.
//
// The sequence can be ranged over once; later iterations yield nothing.
// A protocol violation, spawn failure, malformed context, or context
// cancellation yields (Result{}, err) and ends the sequence. A process
// that dies mid-invocation is not an error: its result has ErrorType
// ErrorTypeUnhandled and the next invocation cold-starts.
//
// The session is left running afterwards; Close terminates it.
func (c *Controller) Invoke(ctx context.Context, events, contexts [][]byte) iter.Seq2[Result, error] {
	consumed := false
	return func(yield func(Result, error) bool) {
		if consumed {
			return
		}
		consumed = true

		var chained []Request
		for index, event := range events {
			if index > 0 && c.config.InvokeDelay > 0 {
				if err := c.sleep(ctx, c.config.InvokeDelay); err != nil {
					yield(Result{}, err)
					return
				}
			}

			var rawContext []byte
			if index < len(contexts) {
				rawContext = contexts[index]
			}
			request, err := c.newRequest(event, rawContext, false)
			if err != nil {
				yield(Result{}, fmt.Errorf("event %d: %w", index, err))
				return
			}

			result, raised, err := c.run(ctx, request)
			chained = append(chained, raised...)
			if err != nil {
				yield(Result{}, err)
				return
			}
			if !yield(result, nil) {
				return
			}
		}

		for len(chained) > 0 {
			request := chained[0]
			chained = chained[1:]

			result, raised, err := c.run(ctx, request)
			chained = append(chained, raised...)
			if err != nil {
				yield(Result{}, err)
				return
			}
			if !yield(result, nil) {
				return
			}
		}
	}
}

// run performs one invocation, cold-starting first if needed. It
// returns the chained requests raised while it ran.
func (c *Controller) run(ctx context.Context, request Request) (Result, []Request, error) {
	if !c.live() {
		if err := c.coldStart(ctx); err != nil {
			return Result{}, c.takeChained(), err
		}
		if c.session.state == Terminated {
			result := c.session.failColdStart(request)
			return result, c.takeChained(), nil
		}
	}

	session := c.session
	if err := session.sendInvoke(request); err != nil {
		c.teardown()
		return Result{}, c.takeChained(), err
	}
	if err := session.await(ctx, InvokeDone); err != nil {
		c.teardown()
		return Result{}, c.takeChained(), err
	}
	if session.state == Terminated {
		c.teardown()
	}

	result, ok := session.takeResult()
	if !ok {
		return Result{}, c.takeChained(), fmt.Errorf("invocation %s ended without a result", session.invocationID)
	}
	return result, c.takeChained(), nil
}

// live reports whether the current session can take an invocation. A
// session whose process died while idle is torn down here.
func (c *Controller) live() bool {
	if c.session == nil || c.session.state == Terminated {
		return false
	}
	if c.session.processGone() {
		c.logger.Warn("bootstrap exited while idle", "session", c.session.SessionID())
		c.teardown()
		return false
	}
	return true
}

func (c *Controller) coldStart(ctx context.Context) error {
	process, err := c.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("starting sandbox: %w", err)
	}

	session := newSession(c, process)
	c.session = session
	c.logger.Info("cold start", "session", session.SessionID(), "function", c.config.FunctionName)

	if err := session.sendStart(); err != nil {
		c.teardown()
		return err
	}
	if err := session.await(ctx, InitDone); err != nil {
		c.teardown()
		return err
	}
	if session.state == Terminated {
		c.teardown()
	}
	return nil
}

func (c *Controller) takeChained() []Request {
	if c.session == nil {
		return nil
	}
	return c.session.takeChained()
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// teardown terminates the process and marks the session terminated.
func (c *Controller) teardown() error {
	if c.session != nil {
		c.session.state = Terminated
	}
	if err := c.launcher.Terminate(); err != nil {
		c.logger.Warn("terminating sandbox", "error", err)
		return err
	}
	return nil
}

// Terminate stops the live session, if any. Idempotent.
func (c *Controller) Terminate() error {
	return c.teardown()
}

// Close is the exit hook. It terminates the session and is safe to call
// repeatedly.
func (c *Controller) Close() error {
	return c.teardown()
}
