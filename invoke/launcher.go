// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"

	"github.com/bureau-foundation/sandbox-invoke/protocol"
	"github.com/bureau-foundation/sandbox-invoke/sandbox"
)

// Process is the controller's view of one running bootstrap.
type Process interface {
	SessionID() string
	Control() *protocol.Channel
	Console() *protocol.Channel

	// Exited is closed once the process has exited.
	Exited() <-chan struct{}

	// MaxMemoryUsed returns peak resident memory in bytes, 0 if unknown.
	MaxMemoryUsed() uint64
}

// Launcher starts and tears down bootstrap processes. Launch must return
// the live process if one exists; Terminate must be idempotent.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
	Terminate() error
}

// ManagedLauncher adapts a sandbox.Manager to Launcher.
func ManagedLauncher(manager *sandbox.Manager) Launcher {
	return managedLauncher{manager: manager}
}

type managedLauncher struct {
	manager *sandbox.Manager
}

func (l managedLauncher) Launch(ctx context.Context) (Process, error) {
	process, err := l.manager.Start(ctx)
	if err != nil {
		return nil, err
	}
	return process, nil
}

func (l managedLauncher) Terminate() error {
	return l.manager.Terminate()
}
