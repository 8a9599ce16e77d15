package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assemble/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for assemble including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)
- The entry point module binaries must export

Examples:
  assemble version              # Show version
  assemble version --detailed   # Show detailed version info
  assemble version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	detailed, _ := cmd.Flags().GetBool("detailed")
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return outputVersionJSON(out)
	case "yaml":
		return yaml.NewEncoder(out).Encode(version.GetBuildInfo())
	case "text":
		if versionShort {
			fmt.Fprintln(out, version.GetShortVersion())
			return nil
		} else if detailed {
			return outputVersionDetailed(out)
		}
		return outputVersionDefault(out)
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", versionFormat)
	}
}

func outputVersionDefault(out io.Writer) error {
	info := version.GetBuildInfo()

	fmt.Fprintf(out, "assemble %s", info.Version)

	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Fprintf(out, " (%s)", info.GitCommit[:7])
	}

	if info.Dirty {
		fmt.Fprint(out, " (dirty)")
	}

	fmt.Fprintln(out)

	if !info.BuildTime.IsZero() {
		fmt.Fprintf(out, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}

	fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
	fmt.Fprintf(out, "Platform: %s\n", info.Platform)

	return nil
}

func outputVersionDetailed(out io.Writer) error {
	fmt.Fprintln(out, version.GetDetailedVersion())

	if version.IsDirty() {
		fmt.Fprintln(out, "Working directory: dirty")
	}

	if version.IsRelease() {
		fmt.Fprintln(out, "Build type: release")
	} else {
		fmt.Fprintln(out, "Build type: development")
	}

	return nil
}

func outputVersionJSON(out io.Writer) error {
	info := version.GetBuildInfo()

	jsonInfo := map[string]interface{}{
		"version":     info.Version,
		"git_commit":  info.GitCommit,
		"build_time":  info.BuildTime,
		"go_version":  info.GoVersion,
		"platform":    info.Platform,
		"build_user":  info.BuildUser,
		"entry_point": info.EntryPoint,
		"is_release":  version.IsRelease(),
		"is_dirty":    info.Dirty,
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonInfo)
}
