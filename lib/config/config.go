// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "SANDBOX_INVOKE_CONFIG"

// LatestQualifier is the unpublished-version qualifier.
const LatestQualifier = "$LATEST"

// Config is the master configuration for sandbox-invoke.
type Config struct {
	// Function describes the function being exercised.
	Function FunctionConfig `yaml:"function"`

	// Bootstrap configures the vendored bootstrap program and how the
	// controller talks to it.
	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	// Credentials are handed to the sandbox in its environment and in
	// every start and invoke message.
	Credentials CredentialsConfig `yaml:"credentials"`

	// InvokeDelay is slept between successive top-level invocations.
	// Default: 0
	InvokeDelay time.Duration `yaml:"invoke_delay"`
}

// FunctionConfig describes the function identity and its package.
type FunctionConfig struct {
	// Name is the function name. Required.
	Name string `yaml:"name"`

	// Handler is the handler entry point, e.g. "index.handler". Required.
	Handler string `yaml:"handler"`

	// Runtime is the runtime identifier, exported to the sandbox as
	// AWS_EXECUTION_ENV=AWS_Lambda_<runtime>. Optional.
	Runtime string `yaml:"runtime"`

	// PackageDir is the unpacked function package. The bootstrap runs
	// with this as its working directory and LAMBDA_TASK_ROOT.
	// Default: .
	PackageDir string `yaml:"package_dir"`

	// MemoryMB is the configured memory size.
	// Default: 128
	MemoryMB int `yaml:"memory_mb"`

	// Timeout is the configured invocation timeout, reported to the
	// handler through remaining-time queries. It is not enforced.
	// Default: 3s
	Timeout time.Duration `yaml:"timeout"`

	// Region is the region reported to the handler.
	// Default: us-east-1
	Region string `yaml:"region"`

	// Qualifier is the version or alias the invocation targets.
	// Default: $LATEST
	Qualifier string `yaml:"qualifier"`

	// Version is the function version reported to the handler.
	// Default: $LATEST
	Version string `yaml:"version"`

	// AccountID appears in the derived function ARN.
	// Default: 000000000000
	AccountID string `yaml:"account_id"`

	// Environment holds user environment overrides applied after the
	// platform variables.
	Environment map[string]string `yaml:"environment"`
}

// BootstrapConfig configures the bootstrap process.
type BootstrapConfig struct {
	// Path is the bootstrap executable. Required.
	Path string `yaml:"path"`

	// RuntimeDir is exported to the sandbox as LAMBDA_RUNTIME_DIR.
	// Default: /var/runtime
	RuntimeDir string `yaml:"runtime_dir"`

	// PollInterval bounds each wait for a protocol message; process
	// death is detected within one interval.
	// Default: 100ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// TerminateGrace is how long terminate waits after SIGTERM before
	// sending SIGKILL.
	// Default: 2s
	TerminateGrace time.Duration `yaml:"terminate_grace"`
}

// CredentialsConfig is the credential tuple given to the sandbox.
type CredentialsConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// Default returns the default configuration. The function name, handler,
// and bootstrap path have no defaults and must be supplied by the file or
// by flags.
func Default() *Config {
	return &Config{
		Function: FunctionConfig{
			PackageDir: ".",
			MemoryMB:   128,
			Timeout:    3 * time.Second,
			Region:     "us-east-1",
			Qualifier:  LatestQualifier,
			Version:    LatestQualifier,
			AccountID:  "000000000000",
		},
		Bootstrap: BootstrapConfig{
			RuntimeDir:     "/var/runtime",
			PollInterval:   100 * time.Millisecond,
			TerminateGrace: 2 * time.Second,
		},
	}
}

// Load loads configuration from the SANDBOX_INVOKE_CONFIG environment
// variable. If it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// [Default]. ${VAR} patterns are expanded after loading.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths
// and credentials.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Function.PackageDir = expandVars(c.Function.PackageDir, vars)
	vars["PACKAGE_DIR"] = c.Function.PackageDir

	c.Bootstrap.Path = expandVars(c.Bootstrap.Path, vars)
	c.Bootstrap.RuntimeDir = expandVars(c.Bootstrap.RuntimeDir, vars)
	c.Credentials.AccessKeyID = expandVars(c.Credentials.AccessKeyID, vars)
	c.Credentials.SecretAccessKey = expandVars(c.Credentials.SecretAccessKey, vars)
	c.Credentials.SessionToken = expandVars(c.Credentials.SessionToken, vars)
	for name, value := range c.Function.Environment {
		c.Function.Environment[name] = expandVars(value, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Function.Name == "" {
		errs = append(errs, errors.New("function.name is required"))
	}
	if c.Function.Handler == "" {
		errs = append(errs, errors.New("function.handler is required"))
	}
	if c.Function.PackageDir == "" {
		errs = append(errs, errors.New("function.package_dir is required"))
	}
	if c.Function.MemoryMB <= 0 {
		errs = append(errs, fmt.Errorf("function.memory_mb must be positive, got %d", c.Function.MemoryMB))
	}
	if c.Function.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("function.timeout must be positive, got %s", c.Function.Timeout))
	}
	if c.Function.Region == "" {
		errs = append(errs, errors.New("function.region is required"))
	}
	if c.Function.Qualifier == "" {
		errs = append(errs, errors.New("function.qualifier is required"))
	}
	if c.Bootstrap.Path == "" {
		errs = append(errs, errors.New("bootstrap.path is required"))
	}
	if c.Bootstrap.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("bootstrap.poll_interval must be positive, got %s", c.Bootstrap.PollInterval))
	}
	if c.Bootstrap.TerminateGrace < 0 {
		errs = append(errs, fmt.Errorf("bootstrap.terminate_grace must not be negative, got %s", c.Bootstrap.TerminateGrace))
	}
	if c.InvokeDelay < 0 {
		errs = append(errs, fmt.Errorf("invoke_delay must not be negative, got %s", c.InvokeDelay))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
