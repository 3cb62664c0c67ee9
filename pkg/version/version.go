// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// These variables are set via ldflags during build:
//
//	-X codemate/pkg/version.Version=1.2.0 -X codemate/pkg/version.Commit=$(git rev-parse HEAD)
var (
	Version   = "dev"
	Commit    = "none"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Summary is the one-word version, with a short commit when known.
func Summary() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	if Commit != "" && Commit != "none" {
		short := Commit
		if len(short) > 7 {
			short = short[:7]
		}
		return fmt.Sprintf("%s (%s)", v, short)
	}
	return v
}

// Info renders the multi-line block printed by "codemate version".
func Info(program string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s\n", program, Summary())
	fmt.Fprintf(&sb, "  commit: %s\n", Commit)
	fmt.Fprintf(&sb, "  built: %s\n", Date)
	fmt.Fprintf(&sb, "  go: %s\n", GoVersion)
	fmt.Fprintf(&sb, "  platform: %s", Platform())
	return sb.String()
}
