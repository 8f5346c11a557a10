// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock that moves only when Advance is called. It is
// safe for concurrent use, so a scripted sandbox goroutine can advance
// time while the controller under test polls.
type FakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	fire     chan time.Time
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

// NewTimer registers a timer that fires when the clock reaches now+d.
func (c *FakeClock) NewTimer(d time.Duration) Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	timer := &fakeTimer{clock: c, deadline: c.now.Add(d), fire: make(chan time.Time, 1)}
	if d <= 0 {
		timer.fire <- c.now
		return timer
	}
	c.timers = append(c.timers, timer)
	return timer
}

// Advance moves the clock forward by d and fires every due timer,
// earliest deadline first.
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*fakeTimer
	pending := c.timers[:0]
	for _, timer := range c.timers {
		if timer.deadline.After(now) {
			pending = append(pending, timer)
		} else {
			due = append(due, timer)
		}
	}
	clear(c.timers[len(pending):])
	c.timers = pending
	c.mutex.Unlock()

	slices.SortStableFunc(due, func(a, b *fakeTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, timer := range due {
		timer.fire <- now
	}
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *FakeClock) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.timers)
}

func (t *fakeTimer) C() <-chan time.Time { return t.fire }

func (t *fakeTimer) Stop() bool {
	c := t.clock
	c.mutex.Lock()
	defer c.mutex.Unlock()
	index := slices.Index(c.timers, t)
	if index < 0 {
		return false
	}
	c.timers = slices.Delete(c.timers, index, index+1)
	return true
}
