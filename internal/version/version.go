// Package version holds build information injected via ldflags:
//
//	-ldflags="-X github.com/acolita/openswitch-harness/internal/version.Version=v0.3.0
//	          -X github.com/acolita/openswitch-harness/internal/version.GitCommit=abc1234"
package version

import "fmt"

// Version is the semantic version, "dev" for local builds.
var Version = "dev"

// GitCommit is the short commit hash at build time.
var GitCommit = "unknown"

// BuildDate is the RFC 3339 build timestamp.
var BuildDate = "unknown"

// Full returns a multi-line version string for binary.
func Full(binary string) string {
	return fmt.Sprintf("%s %s\n  commit:  %s\n  built:   %s", binary, Version, GitCommit, BuildDate)
}
