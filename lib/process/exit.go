// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry a specific process
// exit status.
type ExitCoder interface {
	ExitCode() int
}

// exit is replaced in tests.
var exit = os.Exit

// Fatal writes "error: err" to stderr and exits. The exit status is
// taken from the first error in the chain implementing ExitCoder, or 1.
func Fatal(err error) {
	exit(report(os.Stderr, err))
}

// report writes the error line and returns the exit status.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
