// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox spawns and tears down the bootstrap process and builds
// the environment it runs with.
//
// [BuildEnvironment] produces the exact variable set the vendored
// bootstrap reads at startup: fixed placeholders, function identity,
// credentials, search paths, derived log group and stream names, user
// overrides, and host proxy variables, merged in that order. The
// variable names are a contract with the bootstrap and must not change.
// [ValidateOverrides] rejects user overrides that would clobber a
// platform variable; it runs before any process exists.
//
// [Manager] owns at most one live [Process]. Start allocates two
// socketpairs ("control" and "console"), hands the child ends to the
// bootstrap as descriptors 3 and 4, and closes them in the parent right
// after spawn so the child is their only owner. The bootstrap runs in
// its own session with the function package as working directory and
// receives nothing but its environment: no arguments, no inherited
// host variables.
//
// Unexpected exit is not an error here. [Process.Exited] closes when
// the child is reaped; the invoke package turns that into a failed
// result. Terminate and Close are idempotent so Close can serve as the
// exit hook.
//
// This is not a security boundary. The bootstrap runs with the
// harness's own privileges.
package sandbox
