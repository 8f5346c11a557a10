// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"fmt"
	"io"
	"time"
)

// Error classifications carried by done messages.
const (
	// ErrorTypeHandled: the handler returned an error.
	ErrorTypeHandled = "handled"
	// ErrorTypeUnhandled: the handler crashed, or the process died.
	ErrorTypeUnhandled = "unhandled"
)

// Result is the outcome of one invocation.
type Result struct {
	InvocationID string

	// Payload is the raw response, nil if the handler returned nothing.
	Payload []byte

	// ParsedPayload is Payload decoded as JSON, nil if absent or not JSON.
	ParsedPayload any

	// ErrorType is "", ErrorTypeHandled, or ErrorTypeUnhandled.
	ErrorType string

	Duration       time.Duration
	BilledDuration time.Duration

	// MaxMemoryUsed is the sandbox's peak resident memory in bytes.
	MaxMemoryUsed uint64

	// Request is the request this result answers.
	Request Request
}

// Failed reports whether the invocation ended in an error.
func (r Result) Failed() bool {
	return r.ErrorType != ""
}

const mebibyte = 1 << 20

// writeStartLine writes the line that precedes handler output.
func writeStartLine(w io.Writer, invocationID, version string) {
	fmt.Fprintf(w, "START RequestId: %s Version: %s\n", invocationID, version)
}

func writeEndLine(w io.Writer, invocationID string) {
	fmt.Fprintf(w, "END RequestId: %s\n", invocationID)
}

// writeReportLine writes the REPORT line. initDuration is included only
// when non-zero, which is the first invocation of a session.
func writeReportLine(w io.Writer, result Result, memoryMB int, initDuration time.Duration) {
	maxMemoryMB := (result.MaxMemoryUsed + mebibyte - 1) / mebibyte
	fmt.Fprintf(w, "REPORT RequestId: %s\tDuration: %.2f ms\tBilled Duration: %d ms\tMemory Size: %d MB\tMax Memory Used: %d MB",
		result.InvocationID,
		milliseconds(result.Duration),
		result.BilledDuration.Milliseconds(),
		memoryMB,
		maxMemoryMB,
	)
	if initDuration > 0 {
		fmt.Fprintf(w, "\tInit Duration: %.2f ms", milliseconds(initDuration))
	}
	fmt.Fprintln(w)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
