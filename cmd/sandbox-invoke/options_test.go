// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/bureau-foundation/sandbox-invoke/lib/testutil"
	"github.com/bureau-foundation/sandbox-invoke/sandbox"
)

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()

	directory := testutil.TempDir(t)
	configPath := writeFile(t, directory, "sandbox-invoke.yaml", `
function:
  name: from-file
  handler: file.handler
  memory_mb: 256
  environment:
    STAGE: file
    KEEP: yes
bootstrap:
  path: /opt/bootstrap
invoke_delay: 250ms
`)

	options, err := parseOptions([]string{
		"--config", configPath,
		"--function", "from-flag",
		"--memory", "512",
		"--timeout", "10s",
		"-e", "STAGE=flag",
		"--env", "EXTRA=1",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	cfg, err := options.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Function.Name != "from-flag" {
		t.Errorf("Name = %q, want from-flag", cfg.Function.Name)
	}
	if cfg.Function.Handler != "file.handler" {
		t.Errorf("Handler = %q, want file.handler", cfg.Function.Handler)
	}
	if cfg.Function.MemoryMB != 512 {
		t.Errorf("MemoryMB = %d, want 512", cfg.Function.MemoryMB)
	}
	if cfg.Function.Timeout != 10*time.Second {
		t.Errorf("Timeout = %s, want 10s", cfg.Function.Timeout)
	}
	if cfg.Function.Region != "us-east-1" {
		t.Errorf("Region = %q, want the default us-east-1", cfg.Function.Region)
	}
	if cfg.InvokeDelay != 250*time.Millisecond {
		t.Errorf("InvokeDelay = %s, want 250ms from the file", cfg.InvokeDelay)
	}
	want := map[string]string{"STAGE": "flag", "KEEP": "yes", "EXTRA": "1"}
	if !reflect.DeepEqual(cfg.Function.Environment, want) {
		t.Errorf("Environment = %v, want %v", cfg.Function.Environment, want)
	}
}

func TestFlagsWithoutConfigFile(t *testing.T) {
	t.Setenv("SANDBOX_INVOKE_CONFIG", "")

	options, err := parseOptions([]string{
		"--function", "f",
		"--handler", "index.handler",
		"--bootstrap", "/var/runtime/bootstrap",
		"--qualifier", "prod",
		"--delay", "1s",
		"--env", "A=1",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	cfg, err := options.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Function.Qualifier != "prod" || cfg.InvokeDelay != time.Second {
		t.Errorf("qualifier/delay = %q/%s, want prod/1s", cfg.Function.Qualifier, cfg.InvokeDelay)
	}
	if cfg.Function.Environment["A"] != "1" {
		t.Errorf("Environment = %v, want A=1", cfg.Function.Environment)
	}
	if cfg.Function.MemoryMB != 128 {
		t.Errorf("MemoryMB = %d, want the default 128", cfg.Function.MemoryMB)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Setenv("SANDBOX_INVOKE_CONFIG", "")

	tests := []struct {
		name              string
		args              []string
		wantConfiguration bool
	}{
		{name: "missing required fields", args: nil},
		{name: "zero memory", args: []string{"--function", "f", "--handler", "h", "--bootstrap", "b", "--memory", "0"}},
		{name: "missing config file", args: []string{"--config", "/nonexistent/sandbox-invoke.yaml"}},
		{
			name:              "override without equals",
			args:              []string{"--function", "f", "--handler", "h", "--bootstrap", "b", "--env", "NOVALUE"},
			wantConfiguration: true,
		},
		{
			name:              "reserved override",
			args:              []string{"--function", "f", "--handler", "h", "--bootstrap", "b", "--env", "_LAMBDA_CONTROL_SOCKET=9"},
			wantConfiguration: true,
		},
	}
	for _, test := range tests {
		options, err := parseOptions(test.args, io.Discard)
		if err != nil {
			t.Fatalf("%s: parseOptions: %v", test.name, err)
		}
		_, err = options.loadConfig()
		if err == nil {
			t.Errorf("%s: loadConfig succeeded, want an error", test.name)
			continue
		}
		if got := errors.Is(err, sandbox.ErrConfiguration); got != test.wantConfiguration {
			t.Errorf("%s: errors.Is(err, ErrConfiguration) = %v, want %v (err: %v)", test.name, got, test.wantConfiguration, err)
		}
	}
}

func TestParseOptionsErrors(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"stray"},
		{"--memory", "lots"},
		{"--no-such-flag"},
		{"--events", "-", "--contexts", "-"},
	} {
		if _, err := parseOptions(args, io.Discard); err == nil {
			t.Errorf("parseOptions(%q) succeeded, want an error", args)
		}
	}
}

func TestParseOptionsDefaults(t *testing.T) {
	t.Parallel()

	options, err := parseOptions(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if options.events != stdinPath || options.contexts != "" {
		t.Errorf("events/contexts = %q/%q, want stdin and none", options.events, options.contexts)
	}
	if options.debug || options.version || options.help {
		t.Errorf("boolean flags set by default: %+v", options)
	}
}
