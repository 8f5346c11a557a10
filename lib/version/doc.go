// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which sandbox-invoke build is running.
//
// Release builds stamp [Release] (and optionally [Commit]) with
// -ldflags -X. Otherwise the commit, dirty flag, and commit time come
// from the VCS settings the go command embeds in the binary.
package version
