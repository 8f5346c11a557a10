// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// sandbox-invoke runs a function package locally the way the hosted
// runtime would: it starts the vendored bootstrap with the platform
// environment, drives it through cold start, and feeds it one event per
// input line.
//
// Events are read one per line from --events (default stdin). Optional
// caller contexts are read one per line from --contexts and paired with
// events by position. Each result is printed to stdout as one JSON line.
// Sandbox console output, fault reports, and the START/END/REPORT lines
// go to stderr.
//
// Configuration comes from a YAML file (--config or
// SANDBOX_INVOKE_CONFIG), then flags.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/sandbox-invoke/invoke"
	"github.com/bureau-foundation/sandbox-invoke/lib/process"
	"github.com/bureau-foundation/sandbox-invoke/lib/version"
	"github.com/bureau-foundation/sandbox-invoke/protocol"
	"github.com/bureau-foundation/sandbox-invoke/sandbox"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	options, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}
	if options.help {
		return nil
	}
	if options.version {
		fmt.Fprintf(stdout, "sandbox-invoke %s\n", version.Full())
		return nil
	}

	cfg, err := options.loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(stderr, options.debug || os.Getenv(debugVariable) != "")

	events, err := readStream(options.events, stdin)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	var contexts [][]byte
	if options.contexts != "" {
		contexts, err = readStream(options.contexts, stdin)
		if err != nil {
			return fmt.Errorf("reading contexts: %w", err)
		}
	}
	logger.Debug("inputs loaded", "version", version.Short(), "events", len(events), "contexts", len(contexts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentials := protocol.Credentials{
		AccessKeyID:     cfg.Credentials.AccessKeyID,
		SecretAccessKey: cfg.Credentials.SecretAccessKey,
		SessionToken:    cfg.Credentials.SessionToken,
	}

	manager, err := sandbox.NewManager(sandbox.ManagerConfig{
		BootstrapPath: cfg.Bootstrap.Path,
		Environment: sandbox.EnvironmentInput{
			TaskRoot:         cfg.Function.PackageDir,
			RuntimeDir:       cfg.Bootstrap.RuntimeDir,
			FunctionName:     cfg.Function.Name,
			FunctionVersion:  cfg.Function.Version,
			Qualifier:        cfg.Function.Qualifier,
			Runtime:          cfg.Function.Runtime,
			Handler:          cfg.Function.Handler,
			MemoryMB:         cfg.Function.MemoryMB,
			Timeout:          cfg.Function.Timeout,
			Region:           cfg.Function.Region,
			Credentials:      credentials,
			Overrides:        cfg.Function.Environment,
			LocalEnvironment: os.Getenv("VIRTUAL_ENV"),
		},
		TerminateGrace: cfg.Bootstrap.TerminateGrace,
		Output:         stderr,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	controller, err := invoke.New(invoke.Config{
		FunctionName: cfg.Function.Name,
		Handler:      cfg.Function.Handler,
		Qualifier:    cfg.Function.Qualifier,
		Version:      cfg.Function.Version,
		Region:       cfg.Function.Region,
		AccountID:    cfg.Function.AccountID,
		MemoryMB:     cfg.Function.MemoryMB,
		Timeout:      cfg.Function.Timeout,
		Credentials:  credentials,
		PollInterval: cfg.Bootstrap.PollInterval,
		InvokeDelay:  cfg.InvokeDelay,
		Launcher:     invoke.ManagedLauncher(manager),
		Diagnostics:  stderr,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer controller.Close()

	return writeResults(stdout, controller.Invoke(ctx, events, contexts))
}

// newLogger follows the CLI convention: text on a terminal, JSON
// otherwise.
func newLogger(output io.Writer, debug bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		options.Level = slog.LevelDebug
	}
	if isTerminal(output) {
		return slog.New(slog.NewTextHandler(output, options))
	}
	return slog.New(slog.NewJSONHandler(output, options))
}
