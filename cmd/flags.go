package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/assemble/internal/validation"
)

// Output formats accepted by --output.
var outputFormats = []string{"table", "json", "yaml"}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Output flags
	OutputFormat string `flag:"output,o" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose      bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet        bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")

	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormatWithSuggestion(format, outputFormats)
	})
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.OutputFormat != "" {
		if err := ValidateFormatWithSuggestion(f.OutputFormat, outputFormats); err != nil {
			return err
		}
	}

	// Quiet and verbose are mutually exclusive
	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}

	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	wrapFlag(cmd.Flags().Lookup(flagName), validator)
}

// AddPersistentFlagValidation adds validation for a persistent flag.
func AddPersistentFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	wrapFlag(cmd.PersistentFlags().Lookup(flagName), validator)
}

func wrapFlag(flag *pflag.Flag, validator func(string) error) {
	if flag == nil {
		return
	}

	// Store original value setter
	originalSet := flag.Value.Set

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: originalSet,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateFormatWithSuggestion rejects a format outside valid and suggests
// the closest one.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}

	msg := fmt.Sprintf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
	if suggestion := closest(strings.ToLower(format), valid); suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return fmt.Errorf("%s", msg)
}

// closest returns the candidate within two edits of s, or "".
func closest(s string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := editDistance(s, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// validateExtensionList validates a comma-separated --extension value.
func validateExtensionList(value string) error {
	for _, ext := range strings.Split(value, ",") {
		if err := validation.ValidateExtension(strings.TrimSpace(ext)); err != nil {
			return err
		}
	}
	return nil
}
