// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for invocation accounting and bounded waits.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTimer returns a timer that fires once d has elapsed. A
	// non-positive d fires immediately.
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer. Stop it when the wait it bounds ends some
// other way.
type Timer interface {
	C() <-chan time.Time

	// Stop prevents the timer from firing. It reports whether the timer
	// was still pending.
	Stop() bool
}

// Since returns the time elapsed on c since start.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// Real returns the wall clock.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) NewTimer(d time.Duration) Timer {
	return wallTimer{timer: time.NewTimer(d)}
}

type wallTimer struct {
	timer *time.Timer
}

func (t wallTimer) C() <-chan time.Time { return t.timer.C }

func (t wallTimer) Stop() bool { return t.timer.Stop() }
