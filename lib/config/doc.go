// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for sandbox-invoke.
//
// Configuration is loaded from a single file specified by either the
// SANDBOX_INVOKE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. When neither is given the command runs
// from [Default] plus its flags.
//
// Variable expansion is performed on path and credential fields after
// loading: ${HOME}, ${PACKAGE_DIR}, and ${VAR:-default} patterns are
// expanded. Values are never read from the environment implicitly.
//
// Key exports:
//
//   - [Config] -- master struct with Function, Bootstrap, Credentials
//   - [Default] -- returns a Config with platform defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other packages in this module.
package config
