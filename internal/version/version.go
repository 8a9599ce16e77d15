// Package version reports how the assemble binary was built, and the
// module entry point it expects module binaries to export.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/conneroisu/assemble/internal/module"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version    string    `json:"version" yaml:"version"`
	GitCommit  string    `json:"git_commit" yaml:"git_commit"`
	BuildTime  time.Time `json:"build_time" yaml:"build_time"`
	GoVersion  string    `json:"go_version" yaml:"go_version"`
	Platform   string    `json:"platform" yaml:"platform"`
	BuildUser  string    `json:"build_user,omitempty" yaml:"build_user,omitempty"`
	EntryPoint string    `json:"entry_point" yaml:"entry_point"`
	Dirty      bool      `json:"dirty" yaml:"dirty"`
}

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version of the application
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildTime is the time when the binary was built (RFC3339 format)
	BuildTime = "unknown"

	// BuildUser is the user who built the binary
	BuildUser = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:    GetVersion(),
		GitCommit:  GetGitCommit(),
		BuildTime:  GetBuildTime(),
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		BuildUser:  BuildUser,
		EntryPoint: fmt.Sprintf("func %s() []any", module.ExportsSymbol),
		Dirty:      IsDirty(),
	}
}

// setting returns a build setting recorded by the Go toolchain.
func setting(key string) (string, bool) {
	info, ok := readBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// GetVersion returns the application version: the -ldflags value, else
// the main module version, else a dev version from the VCS revision.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := readBuildInfo(); ok && info.Main.Version != "(devel)" && info.Main.Version != "" {
		return info.Main.Version
	}

	if rev, ok := setting("vcs.revision"); ok && len(rev) >= 7 {
		return "dev-" + rev[:7]
	}

	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if rev, ok := setting("vcs.revision"); ok && rev != "" {
		return rev
	}
	return "unknown"
}

// GetBuildTime returns the build time, falling back to the VCS commit time.
func GetBuildTime() time.Time {
	if t := parseISOTime(BuildTime); !t.IsZero() {
		return t
	}
	if ts, ok := setting("vcs.time"); ok {
		return parseISOTime(ts)
	}
	return time.Time{}
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	version := GetVersion()
	commit := GetGitCommit()

	if commit != "unknown" && len(commit) >= 7 {
		shortCommit := commit[:7]
		if strings.HasPrefix(version, "dev-") {
			return version
		}
		if version != "dev" {
			return fmt.Sprintf("%s (%s)", version, shortCommit)
		}
		return "dev-" + shortCommit
	}

	return version
}

// GetDetailedVersion returns a detailed version string with all build info
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{fmt.Sprintf("Version: %s", info.Version)}

	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if info.Dirty {
			commit += " (dirty)"
		}
		parts = append(parts, fmt.Sprintf("Commit: %s", commit))
	}

	if !info.BuildTime.IsZero() {
		parts = append(parts, fmt.Sprintf("Built: %s", info.BuildTime.Format(time.RFC3339)))
	}

	parts = append(parts,
		fmt.Sprintf("Go: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
		fmt.Sprintf("Module entry point: %s", info.EntryPoint),
	)

	if info.BuildUser != "unknown" && info.BuildUser != "" {
		parts = append(parts, fmt.Sprintf("User: %s", info.BuildUser))
	}

	return strings.Join(parts, "\n")
}

// IsRelease returns true if this is a release build (not dev)
func IsRelease() bool {
	version := GetVersion()
	return version != "dev" && !strings.HasPrefix(version, "dev-")
}

// IsDirty returns true if the working directory was dirty when built
func IsDirty() bool {
	modified, _ := setting("vcs.modified")
	return modified == "true"
}

// parseISOTime parses an ISO 8601 time string, returns zero time on error
func parseISOTime(timeStr string) time.Time {
	if timeStr == "" || timeStr == "unknown" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.000Z",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t
		}
	}

	return time.Time{}
}
