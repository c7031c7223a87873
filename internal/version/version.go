package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at link time:
//
//	go build -ldflags "-X github.com/MrSnakeDoc/hop/internal/version.Version=v0.3.0 \
//	  -X github.com/MrSnakeDoc/hop/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

func init() {
	if Commit != "" {
		return
	}
	// Fall back to the VCS stamp of `go build` when ldflags are not set.
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				Commit = s.Value[:7]
			} else {
				Commit = s.Value
			}
		case "vcs.time":
			if BuildDate == "unknown" {
				BuildDate = s.Value
			}
		}
	}
}

// String is the one-line build description printed by `hop version`.
func String() string {
	commit := Commit
	if commit == "" {
		commit = "none"
	}
	return fmt.Sprintf("hop %s (commit=%s, built=%s, %s)", Version, commit, BuildDate, GoVersion)
}
