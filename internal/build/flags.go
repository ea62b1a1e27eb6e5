// SPDX-License-Identifier: MIT
//
// Package build exposes the application's name, version and provenance.
// Release builds inject them with -ldflags:
//
//	go build -ldflags "-X pitchcv/internal/build.buildName=pitchcv \
//	  -X pitchcv/internal/build.buildTime=2025-04-13T10:00:00Z \
//	  -X pitchcv/internal/build.buildCommit=abcdef1 \
//	  -X pitchcv/internal/build.buildVersion=v0.1.0"
//
// Development builds without ldflags fall back to the module and VCS data
// the Go toolchain embeds.
package build

import (
	"fmt"
	"runtime/debug"
)

const (
	DefaultName        = "pitchcv"
	DefaultDescription = "Track the pitch of an audio input and turn it into a 1 V/octave control voltage"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags values into the build information. With no
// ldflags at all it reads the embedded build info instead; a partial set is
// a broken release build and returns an error naming the first missing flag.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		fromBuildInfo()
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	return nil
}

func fromBuildInfo() {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		buildFlags.Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			buildFlags.Commit = s.Value
		case "vcs.time":
			buildFlags.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the information for --version.
func (f *ldFlags) String() string {
	commit := f.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, commit, f.Time)
}
