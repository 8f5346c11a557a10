// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// fataler is the part of testing.TB the wait helpers need.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if ch
// closes or nothing arrives within timeout. what describes the awaited
// value and may be a format string:
//
//	envelope := testutil.RequireReceive(t, channel.Incoming(), 5*time.Second, "%s message", channel.Name())
func RequireReceive[T any](t fataler, ch <-chan T, timeout time.Duration, what string, args ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for %s", fmt.Sprintf(what, args...))
		}
		return value
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("no %s within %v", fmt.Sprintf(what, args...), timeout)
	}
	panic("unreachable")
}

// RequireClosed fails the test unless ch closes within timeout. Process
// exit channels signal this way.
func RequireClosed(t fataler, ch <-chan struct{}, timeout time.Duration, what string, args ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout): //nolint:realclock test hang prevention
		t.Fatalf("%s did not happen within %v", fmt.Sprintf(what, args...), timeout)
	}
}
