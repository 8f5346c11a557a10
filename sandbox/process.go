// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/sandbox-invoke/lib/binhash"
	"github.com/bureau-foundation/sandbox-invoke/lib/clock"
	"github.com/bureau-foundation/sandbox-invoke/protocol"
)

// minimumWaitDelay bounds how long Exited can lag the child's exit while
// output copying is still pending.
const minimumWaitDelay = time.Second

// ManagerConfig holds configuration for creating a Manager.
type ManagerConfig struct {
	// BootstrapPath is the bootstrap executable. It is started with no
	// arguments beyond argv[0]. A relative path is taken from the current
	// directory at NewManager, not from the package directory.
	BootstrapPath string

	// Environment parameterizes the child environment. TaskRoot is also
	// the child's working directory. SessionID, Date, and the
	// descriptor numbers are filled in per session.
	Environment EnvironmentInput

	// TerminateGrace is how long Terminate waits after SIGTERM before
	// SIGKILL. Zero means SIGKILL immediately after SIGTERM.
	TerminateGrace time.Duration

	// Output receives the bootstrap's stdout and stderr. Nil means
	// /dev/null.
	Output io.Writer

	// Clock drives the session date and the terminate grace period.
	// Nil means clock.Real().
	Clock clock.Clock

	// Logger for process lifecycle events. Nil means slog.Default().
	Logger *slog.Logger
}

// Manager owns at most one live bootstrap process and its two channels.
// Start and Terminate are safe to call from any goroutine.
type Manager struct {
	config ManagerConfig
	clock  clock.Clock
	logger *slog.Logger

	mutex   sync.Mutex
	process *Process

	// teardowns counts OS-level terminations, for tests.
	teardowns int
}

// NewManager validates config and returns a Manager. No process is
// started until Start.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.BootstrapPath == "" {
		return nil, fmt.Errorf("bootstrap path is required")
	}
	if err := ValidateOverrides(config.Environment.Overrides); err != nil {
		return nil, err
	}

	bootstrap, err := resolveBootstrap(config.BootstrapPath)
	if err != nil {
		return nil, fmt.Errorf("resolving bootstrap path: %w", err)
	}
	config.BootstrapPath = bootstrap

	taskRoot := config.Environment.TaskRoot
	if taskRoot == "" {
		taskRoot = "."
	}
	absolute, err := filepath.Abs(taskRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving package directory: %w", err)
	}
	config.Environment.TaskRoot = absolute

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	processClock := config.Clock
	if processClock == nil {
		processClock = clock.Real()
	}

	return &Manager{
		config: config,
		clock:  processClock,
		logger: logger,
	}, nil
}

// resolveBootstrap makes path absolute against the harness's working
// directory, since the child starts in the package directory. A bare
// name is looked up on PATH; if that fails it is left as given and Start
// reports the failure.
func resolveBootstrap(path string) (string, error) {
	if !strings.ContainsRune(path, filepath.Separator) {
		found, err := exec.LookPath(path)
		if err != nil {
			return path, nil
		}
		path = found
	}
	return filepath.Abs(path)
}

// SpawnError reports an OS-level failure to start the bootstrap. It is
// not retried.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning bootstrap %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Start spawns the bootstrap, or returns the live process if one is
// already running.
func (m *Manager) Start(ctx context.Context) (*Process, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.process != nil {
		return m.process, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	process, err := m.spawn()
	if err != nil {
		return nil, err
	}
	m.process = process
	return process, nil
}

// Process returns the live process, or nil.
func (m *Manager) Process() *Process {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.process
}

// Terminate stops the live process and clears session state. SIGTERM
// goes to the child's process group; if it has not exited within the
// grace period it gets SIGKILL. A no-op without a live process.
func (m *Manager) Terminate() error {
	m.mutex.Lock()
	process := m.process
	m.process = nil
	if process != nil {
		m.teardowns++
	}
	m.mutex.Unlock()

	if process == nil {
		return nil
	}
	return process.terminate(m.clock, m.config.TerminateGrace, m.logger)
}

// Close is the exit hook: it terminates any live process. Safe to call
// repeatedly and without a live process.
func (m *Manager) Close() error {
	return m.Terminate()
}

func (m *Manager) spawn() (*Process, error) {
	path := m.config.BootstrapPath

	if identity, err := binhash.Identify(path); err != nil {
		m.logger.Warn("hashing bootstrap failed", "path", path, "error", err)
	} else {
		m.logger.Info("bootstrap identity", "bootstrap", identity)
	}

	controlConnection, controlChild, err := socketPair("control")
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	consoleConnection, consoleChild, err := socketPair("console")
	if err != nil {
		controlConnection.Close()
		controlChild.Close()
		return nil, &SpawnError{Path: path, Err: err}
	}

	input := m.config.Environment
	input.SessionID = uuid.NewString()
	input.Date = m.clock.Now()
	input.ControlDescriptor = ControlDescriptor
	input.ConsoleDescriptor = ConsoleDescriptor
	environment := BuildEnvironment(input)

	command := exec.Command(path)
	command.Dir = input.TaskRoot
	command.Env = environment.Strings()
	command.ExtraFiles = []*os.File{controlChild, consoleChild} // fds 3 and 4
	if m.config.Output != nil {
		command.Stdout = m.config.Output
		command.Stderr = m.config.Output
	}
	// Own session: host terminal signals are not delivered to it, and
	// the process group can be signalled as a whole.
	command.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	// Descendants that inherit the output pipe must not keep Wait, and
	// with it Exited, blocked after the child itself is gone.
	command.WaitDelay = max(m.config.TerminateGrace, minimumWaitDelay)

	if err := command.Start(); err != nil {
		controlConnection.Close()
		consoleConnection.Close()
		controlChild.Close()
		consoleChild.Close()
		return nil, &SpawnError{Path: path, Err: err}
	}

	// The child owns its endpoints now.
	controlChild.Close()
	consoleChild.Close()

	process := &Process{
		sessionID:   input.SessionID,
		environment: environment,
		command:     command,
		control:     protocol.NewChannel("control", controlConnection),
		console:     protocol.NewChannel("console", consoleConnection),
		exited:      make(chan struct{}),
	}
	go process.wait()

	m.logger.Info("bootstrap started",
		"pid", command.Process.Pid,
		"session", input.SessionID,
		"package_dir", input.TaskRoot,
	)
	return process, nil
}

// socketPair returns the parent end of a new stream socketpair as a
// net.Conn and the child end as a file for ExtraFiles.
func socketPair(name string) (net.Conn, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s socketpair: %w", name, err)
	}

	childFile := os.NewFile(uintptr(fds[0]), name+"-child")
	parentFile := os.NewFile(uintptr(fds[1]), name+"-parent")

	// FileConn dups the fd, so the original is closed either way.
	parentConnection, err := net.FileConn(parentFile)
	parentFile.Close()
	if err != nil {
		childFile.Close()
		return nil, nil, fmt.Errorf("converting %s socket to net.Conn: %w", name, err)
	}
	return parentConnection, childFile, nil
}

// Process is one running bootstrap and its channels.
type Process struct {
	sessionID   string
	environment Environment
	command     *exec.Cmd
	control     *protocol.Channel
	console     *protocol.Channel

	exited  chan struct{}
	waitErr error
}

// SessionID returns the id exported to the child as _LAMBDA_SB_ID.
func (p *Process) SessionID() string { return p.sessionID }

// Environment returns the environment the child was started with.
func (p *Process) Environment() Environment { return p.environment }

// PID returns the child's process id.
func (p *Process) PID() int { return p.command.Process.Pid }

// Control returns the control channel.
func (p *Process) Control() *protocol.Channel { return p.control }

// Console returns the console channel.
func (p *Process) Console() *protocol.Channel { return p.console }

// Exited is closed once the child has exited and been reaped.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// ExitErr returns the result of waiting for the child. Only meaningful
// after Exited is closed.
func (p *Process) ExitErr() error { return p.waitErr }

// MaxMemoryUsed returns the child's peak resident set size in bytes, or
// 0 if it cannot be determined.
func (p *Process) MaxMemoryUsed() uint64 {
	select {
	case <-p.exited:
		if state := p.command.ProcessState; state != nil {
			if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
				return uint64(usage.Maxrss) * 1024
			}
		}
		return 0
	default:
	}
	peak, err := readPeakMemory(p.PID())
	if err != nil {
		return 0
	}
	return peak
}

func (p *Process) wait() {
	p.waitErr = p.command.Wait()
	close(p.exited)
}

func (p *Process) terminate(processClock clock.Clock, grace time.Duration, logger *slog.Logger) error {
	pid := p.PID()

	select {
	case <-p.exited:
		// The leader is gone but descendants may still hold the group.
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			logger.Warn("killing leftover process group failed", "pid", pid, "error", err)
		}
	default:
		// Negative pid signals the whole process group; Setsid made
		// the child its leader.
		if err := unix.Kill(-pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			logger.Warn("SIGTERM failed", "pid", pid, "error", err)
		}
		timer := processClock.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.exited:
		case <-timer.C():
			logger.Warn("bootstrap did not exit after SIGTERM, killing", "pid", pid, "grace", grace)
			if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
				logger.Warn("SIGKILL failed", "pid", pid, "error", err)
			}
			<-p.exited
		}
	}

	controlErr := p.control.Close()
	consoleErr := p.console.Close()
	logger.Info("bootstrap terminated", "pid", pid, "session", p.sessionID)
	return errors.Join(controlErr, consoleErr)
}

// readPeakMemory parses VmHWM from /proc/<pid>/status.
func readPeakMemory(pid int) (uint64, error) {
	file, err := os.Open("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		value, found := strings.CutPrefix(scanner.Text(), "VmHWM:")
		if !found {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) != 2 || fields[1] != "kB" {
			return 0, fmt.Errorf("unexpected VmHWM line %q", scanner.Text())
		}
		kilobytes, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing VmHWM: %w", err)
		}
		return kilobytes * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("VmHWM not found for pid %d", pid)
}
