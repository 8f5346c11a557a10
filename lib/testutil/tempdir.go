// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// TempDir creates a temporary directory directly in /tmp.
//
// Build systems may set TMPDIR to deeply nested or noexec locations;
// a stub bootstrap written under t.TempDir() may then be impossible to
// execute. The directory is removed when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "sandbox-invoke-test-*")
	if err != nil {
		t.Fatalf("creating temporary directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}
