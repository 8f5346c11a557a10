// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"bytes"
	"testing"
	"time"
)

func TestSummaryLines(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer
	writeStartLine(&buffer, "id-1", "7")
	writeEndLine(&buffer, "id-1")
	want := "START RequestId: id-1 Version: 7\nEND RequestId: id-1\n"
	if got := buffer.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReportLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		result       Result
		initDuration time.Duration
		want         string
	}{
		{
			name: "warm",
			result: Result{
				InvocationID:   "id-1",
				Duration:       1234567 * time.Microsecond,
				BilledDuration: 1300 * time.Millisecond,
				MaxMemoryUsed:  64 * mebibyte,
			},
			want: "REPORT RequestId: id-1\tDuration: 1234.57 ms\tBilled Duration: 1300 ms\tMemory Size: 256 MB\tMax Memory Used: 64 MB\n",
		},
		{
			name: "cold",
			result: Result{
				InvocationID:   "id-2",
				Duration:       5 * time.Millisecond,
				BilledDuration: 100 * time.Millisecond,
				MaxMemoryUsed:  1,
			},
			initDuration: 80 * time.Millisecond,
			want:         "REPORT RequestId: id-2\tDuration: 5.00 ms\tBilled Duration: 100 ms\tMemory Size: 256 MB\tMax Memory Used: 1 MB\tInit Duration: 80.00 ms\n",
		},
		{
			name:   "memory unknown",
			result: Result{InvocationID: "id-3", BilledDuration: 100 * time.Millisecond},
			want:   "REPORT RequestId: id-3\tDuration: 0.00 ms\tBilled Duration: 100 ms\tMemory Size: 256 MB\tMax Memory Used: 0 MB\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var buffer bytes.Buffer
			writeReportLine(&buffer, test.result, 256, test.initDuration)
			if got := buffer.String(); got != test.want {
				t.Errorf("got  %q\nwant %q", got, test.want)
			}
		})
	}
}

func TestResultFailed(t *testing.T) {
	t.Parallel()

	for errorType, want := range map[string]bool{
		"":                 false,
		ErrorTypeHandled:   true,
		ErrorTypeUnhandled: true,
	} {
		if got := (Result{ErrorType: errorType}).Failed(); got != want {
			t.Errorf("Result{ErrorType: %q}.Failed() = %v, want %v", errorType, got, want)
		}
	}
}
