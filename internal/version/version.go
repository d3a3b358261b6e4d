// Package version exposes build metadata for startup banners and diagnostics.
package version

import (
	"runtime/debug"
)

// Overridable via -ldflags at build time; CommitHash and BuildTime fall back
// to the VCS info stamped by the Go toolchain.
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// GetInfo returns "version (shorthash)" for display.
func GetInfo() string {
	if CommitHash == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					CommitHash = setting.Value
				case "vcs.time":
					BuildTime = setting.Value
				}
			}
		}
	}

	out := Version
	if CommitHash != "" {
		short := CommitHash
		if len(short) > 7 {
			short = short[:7]
		}
		out += " (" + short + ")"
	}
	return out
}
