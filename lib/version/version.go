// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Release and Commit may be set with -ldflags -X. When Commit is left
// empty it is taken from the VCS stamp the go command embeds.
var (
	Release = "0.1.0-dev"
	Commit  = ""
)

// Build describes the running binary.
type Build struct {
	Release  string
	Commit   string
	Modified bool
	Time     string
	Go       string
}

// Current returns the build description, filling in whatever the
// linker flags left unset from the embedded build info.
func Current() Build {
	build := Build{
		Release: Release,
		Commit:  Commit,
		Go:      runtime.Version(),
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return build
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if build.Commit == "" {
				build.Commit = setting.Value
			}
		case "vcs.modified":
			build.Modified = setting.Value == "true"
		case "vcs.time":
			build.Time = setting.Value
		}
	}
	return build
}

// String renders the build as "release (commit[-dirty], time)".
func (b Build) String() string {
	commit := b.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		commit = "unknown"
	}
	if b.Modified {
		commit += "-dirty"
	}
	parts := []string{commit}
	if b.Time != "" {
		parts = append(parts, b.Time)
	}
	return fmt.Sprintf("%s (%s)", b.Release, strings.Join(parts, ", "))
}

// Full is the --version text.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Current(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns the release alone.
func Short() string {
	return Release
}
