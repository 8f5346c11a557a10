// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns Default with the required fields filled in.
func validConfig() *Config {
	cfg := Default()
	cfg.Function.Name = "echo"
	cfg.Function.Handler = "index.handler"
	cfg.Bootstrap.Path = "/var/runtime/bootstrap"
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "sandbox-invoke.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Function.MemoryMB != 128 {
		t.Errorf("expected memory_mb=128, got %d", cfg.Function.MemoryMB)
	}
	if cfg.Function.Timeout != 3*time.Second {
		t.Errorf("expected timeout=3s, got %s", cfg.Function.Timeout)
	}
	if cfg.Function.Region != "us-east-1" {
		t.Errorf("expected region=us-east-1, got %s", cfg.Function.Region)
	}
	if cfg.Function.Qualifier != LatestQualifier {
		t.Errorf("expected qualifier=%s, got %s", LatestQualifier, cfg.Function.Qualifier)
	}
	if cfg.Function.AccountID != "000000000000" {
		t.Errorf("expected account_id=000000000000, got %s", cfg.Function.AccountID)
	}
	if cfg.Bootstrap.PollInterval != 100*time.Millisecond {
		t.Errorf("expected poll_interval=100ms, got %s", cfg.Bootstrap.PollInterval)
	}
	if cfg.InvokeDelay != 0 {
		t.Errorf("expected invoke_delay=0, got %s", cfg.InvokeDelay)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SANDBOX_INVOKE_CONFIG not set, got nil")
	}

	expectedMsg := "SANDBOX_INVOKE_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, `
function:
  name: resize
  handler: main.handle
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Function.Name != "resize" {
		t.Errorf("expected name=resize, got %s", cfg.Function.Name)
	}
	if cfg.Function.MemoryMB != 128 {
		t.Errorf("expected default memory_mb=128 to survive, got %d", cfg.Function.MemoryMB)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
function:
  name: thumbnails
  handler: index.handler
  package_dir: /srv/thumbnails
  memory_mb: 512
  timeout: 30s
  region: eu-west-1
  qualifier: prod
  version: "7"
  account_id: "123456789012"
  environment:
    BUCKET: images

bootstrap:
  path: /opt/runtime/bootstrap
  runtime_dir: /opt/runtime
  poll_interval: 250ms
  terminate_grace: 5s

credentials:
  access_key_id: AKIDEXAMPLE
  secret_access_key: secret
  session_token: token

invoke_delay: 1s
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Function.PackageDir != "/srv/thumbnails" {
		t.Errorf("expected package_dir=/srv/thumbnails, got %s", cfg.Function.PackageDir)
	}
	if cfg.Function.MemoryMB != 512 {
		t.Errorf("expected memory_mb=512, got %d", cfg.Function.MemoryMB)
	}
	if cfg.Function.Timeout != 30*time.Second {
		t.Errorf("expected timeout=30s, got %s", cfg.Function.Timeout)
	}
	if cfg.Function.Qualifier != "prod" {
		t.Errorf("expected qualifier=prod, got %s", cfg.Function.Qualifier)
	}
	if cfg.Function.Version != "7" {
		t.Errorf("expected version=7, got %s", cfg.Function.Version)
	}
	if cfg.Function.AccountID != "123456789012" {
		t.Errorf("expected account_id=123456789012, got %s", cfg.Function.AccountID)
	}
	if cfg.Function.Environment["BUCKET"] != "images" {
		t.Errorf("expected environment BUCKET=images, got %q", cfg.Function.Environment["BUCKET"])
	}
	if cfg.Bootstrap.Path != "/opt/runtime/bootstrap" {
		t.Errorf("expected bootstrap path=/opt/runtime/bootstrap, got %s", cfg.Bootstrap.Path)
	}
	if cfg.Bootstrap.PollInterval != 250*time.Millisecond {
		t.Errorf("expected poll_interval=250ms, got %s", cfg.Bootstrap.PollInterval)
	}
	if cfg.Bootstrap.TerminateGrace != 5*time.Second {
		t.Errorf("expected terminate_grace=5s, got %s", cfg.Bootstrap.TerminateGrace)
	}
	if cfg.Credentials.AccessKeyID != "AKIDEXAMPLE" {
		t.Errorf("expected access_key_id=AKIDEXAMPLE, got %s", cfg.Credentials.AccessKeyID)
	}
	if cfg.InvokeDelay != time.Second {
		t.Errorf("expected invoke_delay=1s, got %s", cfg.InvokeDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := writeConfig(t, "function: [unterminated\n")

	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestLoadFile_ExpandsVariables(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("TEST_SECRET_KEY", "from-environment")

	configPath := writeConfig(t, `
function:
  name: expand
  handler: index.handler
  package_dir: ${HOME}/functions/expand
  environment:
    DATA_DIR: ${PACKAGE_DIR}/data
bootstrap:
  path: ${PACKAGE_DIR}/bootstrap
  runtime_dir: ${RUNTIME_DIR_FOR_TEST:-/var/runtime}
credentials:
  secret_access_key: ${TEST_SECRET_KEY}
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"package_dir", cfg.Function.PackageDir, "/home/tester/functions/expand"},
		{"environment.DATA_DIR", cfg.Function.Environment["DATA_DIR"], "/home/tester/functions/expand/data"},
		{"bootstrap.path", cfg.Bootstrap.Path, "/home/tester/functions/expand/bootstrap"},
		{"bootstrap.runtime_dir", cfg.Bootstrap.RuntimeDir, "/var/runtime"},
		{"credentials.secret_access_key", cfg.Credentials.SecretAccessKey, "from-environment"},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("%s = %q, want %q", check.field, check.got, check.want)
		}
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Only explicit ${VAR} references read the environment.
	t.Setenv("AWS_REGION", "ap-south-1")

	configPath := writeConfig(t, `
function:
  name: fixed
  region: eu-central-1
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Function.Region != "eu-central-1" {
		t.Errorf("expected region=eu-central-1 from file, got %s (env vars should not override)", cfg.Function.Region)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/functions",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/functions",
		},
		{
			input:    "${SANDBOX_INVOKE_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "$LATEST",
			vars:     map[string]string{},
			expected: "$LATEST",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "missing name",
			modify:  func(c *Config) { c.Function.Name = "" },
			wantErr: "function.name is required",
		},
		{
			name:    "missing handler",
			modify:  func(c *Config) { c.Function.Handler = "" },
			wantErr: "function.handler is required",
		},
		{
			name:    "missing bootstrap",
			modify:  func(c *Config) { c.Bootstrap.Path = "" },
			wantErr: "bootstrap.path is required",
		},
		{
			name:    "zero memory",
			modify:  func(c *Config) { c.Function.MemoryMB = 0 },
			wantErr: "function.memory_mb must be positive",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Function.Timeout = 0 },
			wantErr: "function.timeout must be positive",
		},
		{
			name:    "zero poll interval",
			modify:  func(c *Config) { c.Bootstrap.PollInterval = 0 },
			wantErr: "bootstrap.poll_interval must be positive",
		},
		{
			name:    "negative delay",
			modify:  func(c *Config) { c.InvokeDelay = -time.Second },
			wantErr: "invoke_delay must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	err := Default().Validate()
	if err == nil {
		t.Fatal("Default() should not validate without name, handler, and bootstrap")
	}
	for _, want := range []string{"function.name", "function.handler", "bootstrap.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
