// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/sandbox-invoke/lib/config"
	"github.com/bureau-foundation/sandbox-invoke/sandbox"
)

// debugVariable, when set to any value, enables debug logging.
const debugVariable = "SANDBOX_INVOKE_DEBUG"

// stdinPath names standard input in --events and --contexts.
const stdinPath = "-"

type options struct {
	flagSet *pflag.FlagSet

	configPath  string
	function    string
	handler     string
	runtime     string
	packageDir  string
	bootstrap   string
	memory      int
	timeout     time.Duration
	region      string
	qualifier   string
	environment []string
	events      string
	contexts    string
	delay       time.Duration
	debug       bool
	version     bool
	help        bool
}

// parseOptions parses args. Usage goes to output on --help.
func parseOptions(args []string, output io.Writer) (*options, error) {
	o := &options{}
	flagSet := pflag.NewFlagSet("sandbox-invoke", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&o.configPath, "config", "", "YAML config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&o.function, "function", "", "function name")
	flagSet.StringVar(&o.handler, "handler", "", "handler entry point, e.g. index.handler")
	flagSet.StringVar(&o.runtime, "runtime", "", "runtime identifier exported as AWS_EXECUTION_ENV")
	flagSet.StringVar(&o.packageDir, "package-dir", "", "unpacked function package (default .)")
	flagSet.StringVar(&o.bootstrap, "bootstrap", "", "bootstrap executable")
	flagSet.IntVar(&o.memory, "memory", 0, "memory size in MB (default 128)")
	flagSet.DurationVar(&o.timeout, "timeout", 0, "invocation timeout reported to the handler (default 3s)")
	flagSet.StringVar(&o.region, "region", "", "region (default us-east-1)")
	flagSet.StringVar(&o.qualifier, "qualifier", "", "version or alias (default $LATEST)")
	flagSet.StringArrayVarP(&o.environment, "env", "e", nil, "environment override KEY=VALUE (repeatable)")
	flagSet.StringVar(&o.events, "events", stdinPath, "line-delimited events file, - for stdin")
	flagSet.StringVar(&o.contexts, "contexts", "", "line-delimited caller contexts file, paired with events by line")
	flagSet.DurationVar(&o.delay, "delay", 0, "pause between successive events")
	flagSet.BoolVar(&o.debug, "debug", false, "debug logging (also $"+debugVariable+")")
	flagSet.BoolVar(&o.version, "version", false, "print version information")
	flagSet.BoolVarP(&o.help, "help", "h", false, "show help")
	o.flagSet = flagSet

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			o.help = true
			return o, nil
		}
		return nil, err
	}
	if o.help {
		printUsage(output, flagSet)
		return o, nil
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if o.events == stdinPath && o.contexts == stdinPath {
		return nil, errors.New("--events and --contexts cannot both read stdin")
	}
	return o, nil
}

// loadConfig reads the config file, if any, applies flags that were set,
// and validates the result.
func (o *options) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case o.configPath != "":
		cfg, err = config.LoadFile(o.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if err := o.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := sandbox.ValidateOverrides(cfg.Function.Environment); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overwrites cfg with every flag given on the command line.
func (o *options) apply(cfg *config.Config) error {
	changed := o.flagSet.Changed
	if changed("function") {
		cfg.Function.Name = o.function
	}
	if changed("handler") {
		cfg.Function.Handler = o.handler
	}
	if changed("runtime") {
		cfg.Function.Runtime = o.runtime
	}
	if changed("package-dir") {
		cfg.Function.PackageDir = o.packageDir
	}
	if changed("bootstrap") {
		cfg.Bootstrap.Path = o.bootstrap
	}
	if changed("memory") {
		cfg.Function.MemoryMB = o.memory
	}
	if changed("timeout") {
		cfg.Function.Timeout = o.timeout
	}
	if changed("region") {
		cfg.Function.Region = o.region
	}
	if changed("qualifier") {
		cfg.Function.Qualifier = o.qualifier
	}
	if changed("delay") {
		cfg.InvokeDelay = o.delay
	}

	overrides, err := sandbox.ParseOverrides(o.environment)
	if err != nil {
		return err
	}
	if len(overrides) > 0 && cfg.Function.Environment == nil {
		cfg.Function.Environment = make(map[string]string, len(overrides))
	}
	for name, value := range overrides {
		cfg.Function.Environment[name] = value
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func printUsage(output io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(output, `Run a function package against its bootstrap, one event per input line.

Usage:
  sandbox-invoke [flags] < events.jsonl

Each result is printed to stdout as a JSON line:
  {"request_id": ..., "error_type": ..., "duration_ms": ..., "billed_duration_ms": ..., "payload": ...}

Flags:
%s`, flagSet.FlagUsages())
}
