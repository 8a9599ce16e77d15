package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/assemble/internal/config"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/processors"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Load the configuration from flags, environment and file and report
every error and warning found, with suggestions.

Examples:
  assemble validate                        # Validate .assemble.yml
  assemble validate --config prod.yml      # Validate another file
  assemble validate --strict               # Treat warnings as errors`,
	RunE: runValidate,
}

var validateStrict bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Fail on warnings too")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Decode without the load-time check so every problem is reported.
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}

	result := config.ValidateConfigWithDetails(cfg)
	if _, err := processors.NewSet(logging.NewNopLogger()).Lookup(cfg.Discovery.Builtin); err != nil {
		result.Errors = append(result.Errors, config.ValidationError{
			Field:       "discovery.builtin",
			Value:       cfg.Discovery.Builtin,
			Message:     err.Error(),
			Suggestions: processors.Names(),
		})
		result.Valid = false
	}

	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintln(out, "✅ Configuration is valid")
		return nil
	}
	fmt.Fprint(out, result.String())

	if result.HasErrors() {
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
	}
	if validateStrict && result.HasWarnings() {
		return fmt.Errorf("configuration has %d warning(s)", len(result.Warnings))
	}
	return nil
}
