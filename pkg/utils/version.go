// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import (
	"runtime"
	"runtime/debug"
)

// Set at link time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// Build describes the running stacks binary.
type Build struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	BuiltAt   string `json:"built_at"`
	GoVersion string `json:"go_version"`
}

// BuildInfo returns the link-time build values. Binaries built without
// ldflags (e.g. go install) fall back to the module version and VCS revision
// recorded by the toolchain.
func BuildInfo() Build {
	b := Build{
		Version:   Version,
		Sha:       Sha,
		BuiltAt:   Buildtime,
		GoVersion: runtime.Version(),
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return b
	}
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Sha == "HEAD" {
				b.Sha = s.Value
			}
		case "vcs.time":
			if b.BuiltAt == "dev" {
				b.BuiltAt = s.Value
			}
		}
	}
	return b
}
