package version

import (
	"fmt"
	"io"
)

// Build metadata, set with -ldflags "-X".
var (
	App       string = "memberguard"
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
	BuildOS   string
	BuildArch string
)

// Print writes the version block shown by `memberguard -v`.
func Print(w io.Writer) {
	fmt.Fprintf(w, "%s version %s\n", App, Short())
	if GitCommit != "" {
		fmt.Fprintf(w, "Git commit: %s\n", shortCommit())
	}
	if BuildTime != "" {
		fmt.Fprintf(w, "Build time: %s\n", BuildTime)
	}
	if GoVersion != "" {
		fmt.Fprintf(w, "Go version: %s\n", GoVersion)
	}
	if BuildOS != "" && BuildArch != "" {
		fmt.Fprintf(w, "Built for: %s/%s\n", BuildOS, BuildArch)
	}
}

// Short is the release version, "dev" for local builds. Member clients
// send it in their user agent.
func Short() string {
	if Version != "" {
		return Version
	}
	return "dev"
}

func shortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}
