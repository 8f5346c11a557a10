// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/sandbox-invoke/protocol"
)

// Descriptor numbers of the two channel endpoints in the child. ExtraFiles
// entries start at 3.
const (
	ControlDescriptor = 3
	ConsoleDescriptor = 4
)

// EnvironmentInput is everything BuildEnvironment needs. Zero values
// degrade to empty strings in the output.
type EnvironmentInput struct {
	// TaskRoot is the function package directory.
	TaskRoot   string
	RuntimeDir string

	FunctionName    string
	FunctionVersion string
	Qualifier       string
	Runtime         string
	Handler         string
	MemoryMB        int
	Timeout         time.Duration
	Region          string

	Credentials protocol.Credentials

	// SessionID distinguishes log streams of two sessions of the same
	// function.
	SessionID string

	// Date supplies the log stream date. Converted to UTC.
	Date time.Time

	// Overrides are user variables, applied after the platform values.
	Overrides map[string]string

	// ControlDescriptor and ConsoleDescriptor are the child-side fd
	// numbers of the two channels.
	ControlDescriptor int
	ConsoleDescriptor int

	// LocalEnvironment is the harness's own virtual environment
	// directory, if any. Its bin and lib directories are prepended to
	// the search paths.
	LocalEnvironment string

	// LookupEnv reads host proxy variables. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Environment is the variable set handed to the bootstrap.
type Environment map[string]string

// Strings returns the environment as sorted KEY=VALUE entries, the form
// exec.Cmd.Env takes.
func (e Environment) Strings() []string {
	entries := make([]string, 0, len(e))
	for name, value := range e {
		entries = append(entries, name+"="+value)
	}
	slices.Sort(entries)
	return entries
}

// proxyVariables pass through from the host and win over overrides.
var proxyVariables = []string{
	"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
	"http_proxy", "https_proxy", "no_proxy",
}

// Standard system directories, lowest precedence.
const (
	systemExecutablePath = "/usr/local/bin:/usr/bin:/bin:/opt/bin"
	systemLibraryPath    = "/lib64:/usr/lib64"
)

// BuildEnvironment returns the full environment the bootstrap expects.
// It reads nothing but the proxy variables and the layout of the local
// environment's lib directory.
func BuildEnvironment(input EnvironmentInput) Environment {
	environment := Environment{
		// Fixed placeholders: no shared memory segment, no external log
		// descriptor, no runtime API server.
		"_LAMBDA_SHARED_MEM_FD":     "-1",
		"_LAMBDA_LOG_FD":            "-1",
		"_LAMBDA_SERVER_PORT":       "0",
		"_LAMBDA_RUNTIME_LOAD_TIME": "0",

		"_AWS_XRAY_DAEMON_ADDRESS": "127.0.0.1",
		"_AWS_XRAY_DAEMON_PORT":    "2000",
		"AWS_XRAY_DAEMON_ADDRESS":  "127.0.0.1:2000",
		"AWS_XRAY_CONTEXT_MISSING": "LOG_ERROR",

		"LANG": "en_US.UTF-8",
		"TZ":   ":UTC",

		"_LAMBDA_CONTROL_SOCKET": strconv.Itoa(input.ControlDescriptor),
		"_LAMBDA_CONSOLE_SOCKET": strconv.Itoa(input.ConsoleDescriptor),
		"_LAMBDA_SB_ID":          input.SessionID,

		"LAMBDA_TASK_ROOT":   input.TaskRoot,
		"LAMBDA_RUNTIME_DIR": input.RuntimeDir,
		"_HANDLER":           input.Handler,
		"AWS_EXECUTION_ENV":  executionEnvironment(input.Runtime),

		"AWS_LAMBDA_FUNCTION_NAME":        input.FunctionName,
		"AWS_LAMBDA_FUNCTION_VERSION":     input.FunctionVersion,
		"AWS_LAMBDA_FUNCTION_MEMORY_SIZE": strconv.Itoa(input.MemoryMB),
		"AWS_LAMBDA_FUNCTION_TIMEOUT":     strconv.Itoa(timeoutSeconds(input.Timeout)),
		"AWS_REGION":                      input.Region,
		"AWS_DEFAULT_REGION":              input.Region,

		"AWS_ACCESS_KEY_ID":     input.Credentials.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY": input.Credentials.SecretAccessKey,
		"AWS_SESSION_TOKEN":     input.Credentials.SessionToken,
		"AWS_SECURITY_TOKEN":    input.Credentials.SessionToken,

		"AWS_LAMBDA_LOG_GROUP_NAME":  LogGroupName(input.FunctionName),
		"AWS_LAMBDA_LOG_STREAM_NAME": LogStreamName(input.Date, input.Qualifier, input.SessionID),
	}

	environment["LD_LIBRARY_PATH"] = searchPath(subdirectory(input.LocalEnvironment, "lib"),
		systemLibraryPath,
		input.RuntimeDir, subdirectory(input.RuntimeDir, "lib"),
		input.TaskRoot, subdirectory(input.TaskRoot, "lib"),
		"/opt/lib")
	pythonPath := append(sitePackages(input.LocalEnvironment), input.RuntimeDir)
	environment["PYTHONPATH"] = searchPath(pythonPath...)
	environment["PATH"] = searchPath(subdirectory(input.LocalEnvironment, "bin"),
		systemExecutablePath,
		input.TaskRoot)

	for name, value := range input.Overrides {
		environment[name] = value
	}

	lookup := input.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range proxyVariables {
		if value, ok := lookup(name); ok {
			environment[name] = value
		}
	}

	return environment
}

// LogGroupName returns the log group a function's output belongs to.
func LogGroupName(functionName string) string {
	return "/aws/lambda/" + functionName
}

// LogStreamName returns YYYY/MM/DD/[qualifier]sessionID for the UTC date
// of date.
func LogStreamName(date time.Time, qualifier, sessionID string) string {
	return date.UTC().Format("2006/01/02") + "/[" + qualifier + "]" + sessionID
}

func executionEnvironment(runtime string) string {
	if runtime == "" {
		return ""
	}
	return "AWS_Lambda_" + runtime
}

// timeoutSeconds rounds up: the platform only has whole-second
// timeouts, and the handler must never be told it has less time than
// the controller allows.
func timeoutSeconds(timeout time.Duration) int {
	return int((timeout + time.Second - 1) / time.Second)
}

// sitePackages returns prefix/lib/python*/site-packages for every Python
// the local environment was built with, in lexical order.
func sitePackages(prefix string) []string {
	if prefix == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(prefix, "lib", "python*", "site-packages"))
	if err != nil {
		return nil
	}
	return matches
}

// subdirectory returns root/leaf, or "" when root is unset.
func subdirectory(root, leaf string) string {
	if root == "" {
		return ""
	}
	return filepath.Join(root, leaf)
}

// searchPath joins non-empty elements with ':' in the given order.
func searchPath(elements ...string) string {
	var kept []string
	for _, element := range elements {
		if element != "" {
			kept = append(kept, element)
		}
	}
	return strings.Join(kept, ":")
}

// ErrConfiguration matches every ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("sandbox configuration error")

// ConfigurationError reports an unusable setting, such as an environment
// override that collides with a platform variable. It is raised before
// any process is spawned.
type ConfigurationError struct {
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration %q: %s", e.Name, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// reservedNames are owned by the platform and cannot be overridden.
var reservedNames = map[string]bool{
	"_HANDLER":              true,
	"AWS_EXECUTION_ENV":     true,
	"LAMBDA_TASK_ROOT":      true,
	"LAMBDA_RUNTIME_DIR":    true,
	"AWS_REGION":            true,
	"AWS_DEFAULT_REGION":    true,
	"AWS_ACCESS_KEY_ID":     true,
	"AWS_SECRET_ACCESS_KEY": true,
	"AWS_SESSION_TOKEN":     true,
	"AWS_SECURITY_TOKEN":    true,
	"TZ":                    true,
}

var reservedPrefixes = []string{"_LAMBDA_", "_AWS_XRAY_", "AWS_LAMBDA_"}

// ValidateOverrides rejects override names that are empty, malformed, or
// reserved. The first offending name in sorted order is reported.
func ValidateOverrides(overrides map[string]string) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := validateOverride(name, overrides[name]); err != nil {
			return err
		}
	}
	return nil
}

func validateOverride(name, value string) error {
	if name == "" {
		return &ConfigurationError{Reason: "empty environment variable name"}
	}
	if strings.ContainsAny(name, "=\x00") {
		return &ConfigurationError{Name: name, Reason: "name contains '=' or NUL"}
	}
	if strings.ContainsRune(value, 0) {
		return &ConfigurationError{Name: name, Reason: "value contains NUL"}
	}
	if reservedNames[name] {
		return &ConfigurationError{Name: name, Reason: "reserved by the platform"}
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return &ConfigurationError{Name: name, Reason: "reserved by the platform (" + prefix + "*)"}
		}
	}
	return nil
}

// ParseOverrides parses KEY=VALUE entries and validates the result.
// Later entries win over earlier ones with the same name.
func ParseOverrides(entries []string) (map[string]string, error) {
	overrides := make(map[string]string, len(entries))
	for _, entry := range entries {
		name, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, &ConfigurationError{Name: entry, Reason: "expected KEY=VALUE"}
		}
		overrides[name] = value
	}
	if err := ValidateOverrides(overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}
