// Package version reports build metadata for pianola.
//
// The variables below are set at link time:
//
//	go build -ldflags "-X github.com/jmylchreest/pianola/internal/version.Version=x.y.z \
//	                   -X github.com/jmylchreest/pianola/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/jmylchreest/pianola/internal/version.Branch=$(git rev-parse --abbrev-ref HEAD) \
//	                   -X github.com/jmylchreest/pianola/internal/version.TreeState=clean \
//	                   -X github.com/jmylchreest/pianola/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

var (
	// Version is a SemVer 2.0.0 string. Snapshot builds look like
	// "1.2.3-SNAPSHOT.abc1234".
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Branch is the git branch the binary was built from.
	Branch = "unknown"

	// TreeState is "clean" or "dirty".
	TreeState = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// ApplicationName is the canonical name of this application.
const ApplicationName = "pianola"

const shortSHALen = 8

// Info is the structured form of the build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	CommitSHA string `json:"commit_sha"`
	Branch    string `json:"branch"`
	TreeState string `json:"tree_state"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build metadata.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		CommitSHA: shortCommit(),
		Branch:    Branch,
		TreeState: TreeState,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// shortCommit returns the abbreviated commit, or "" when unknown.
func shortCommit() string {
	if Commit == "unknown" || len(Commit) < shortSHALen {
		return ""
	}
	return Commit[:shortSHALen]
}

// commitLabel is the short commit with a trailing * for dirty trees.
func commitLabel() string {
	sha := shortCommit()
	if sha != "" && TreeState == "dirty" {
		sha += "*"
	}
	return sha
}

// String returns a human-readable version line.
func String() string {
	info := GetInfo()
	sha := commitLabel()
	if sha == "" {
		return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s version %s (commit: %s", ApplicationName, info.Version, sha)
	if Branch != "unknown" && Branch != "" {
		fmt.Fprintf(&b, ", branch: %s", Branch)
	}
	fmt.Fprintf(&b, ", built: %s, %s, %s)", info.Date, info.GoVersion, info.Platform)
	return b.String()
}

// Short returns the version for cobra's --version output, which already
// prefixes the application name.
func Short() string {
	if sha := commitLabel(); sha != "" {
		return fmt.Sprintf("%s (%s)", Version, sha)
	}
	return Version
}

// JSON returns the build metadata as a JSON document.
func JSON() string {
	data, err := json.MarshalIndent(GetInfo(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// UserAgent returns the User-Agent sent to upstream services.
func UserAgent() string {
	return ApplicationName + "/" + Version
}

// IsSnapshot reports whether this is a development or snapshot build.
func IsSnapshot() bool {
	return Version == "dev" || strings.Contains(Version, "-SNAPSHOT")
}

// IsRelease reports whether this is a tagged release build.
func IsRelease() bool {
	return !IsSnapshot()
}
