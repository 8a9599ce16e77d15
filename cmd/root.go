// Package cmd provides the command-line interface for assemble.
//
// Configuration System:
//
//	Settings come from several sources, highest priority first:
//	1. Command-line flags (--root, --log-level, etc.)
//	2. Individual environment variables (ASSEMBLE_SCAN_ROOT, etc.)
//	3. The configuration file: --config, then ASSEMBLE_CONFIG_FILE, then
//	   .assemble.yml in the current directory
//	4. Built-in defaults
//
// Environment Variables:
//
//	ASSEMBLE_CONFIG_FILE: Path to a custom configuration file
//	ASSEMBLE_SCAN_ROOT: Directory scanned for module binaries
//	ASSEMBLE_SCAN_EXTENSIONS: Comma-separated module file extensions
//	ASSEMBLE_DISCOVERY_BUILTIN: Comma-separated builtin processors
//	And the rest following the ASSEMBLE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/assemble/internal/validation"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Discover modules and dispatch them to processors",
	Long: `Assemble finds the modules available to a program, the ones already
linked in and the module binaries under a scan root, discovers the
processors those modules export and hands every module to every processor.

Quick Start:
  assemble run                    Run one assembly and print the report
  assemble list                   List every module the inventory saw
  assemble watch                  Re-run whenever module binaries appear
  assemble validate               Check the configuration

Command Aliases (for faster typing):
  run (r), list (l), watch (w)`,
	SilenceUsage: true,
}

// persistentBindings maps persistent flags to configuration keys.
var persistentBindings = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"root":           "scan.root",
	"recursive":      "scan.recursive",
	"extension":      "scan.extensions",
	"build-info":     "scan.build_info",
	"builtin":        "discovery.builtin",
	"trace":          "tracing.enabled",
	"trace-exporter": "tracing.exporter",
	"trace-file":     "tracing.file_path",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .assemble.yml, can also use ASSEMBLE_CONFIG_FILE env var)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("root", "", "directory scanned for module binaries (default is the executable's directory)")
	flags.Bool("recursive", true, "scan subdirectories of the root")
	flags.StringSlice("extension", []string{".so"}, "module binary file extensions")
	flags.Bool("build-info", false, "treat modules linked into this binary as resident modules")
	flags.StringSlice("builtin", []string{"inventory"}, "builtin processors to register (inventory, log)")
	flags.Bool("trace", false, "record a trace of each run")
	flags.String("trace-exporter", "stdout", "trace exporter (stdout, file, otlp)")
	flags.String("trace-file", "", "file the file trace exporter writes to")

	AddPersistentFlagValidation(rootCmd, "root", validation.ValidatePath)
	AddPersistentFlagValidation(rootCmd, "extension", validateExtensionList)
	AddPersistentFlagValidation(rootCmd, "log-format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"text", "json"})
	})
}

// bindFlags binds the persistent flags to their configuration keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range persistentBindings {
		if flag := flags.Lookup(name); flag != nil {
			_ = v.BindPFlag(key, flag)
		}
	}
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. ASSEMBLE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .assemble.yml in current directory
//
// Environment variables with the ASSEMBLE_ prefix override file values,
// e.g. ASSEMBLE_SCAN_ROOT=/opt/modules.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ASSEMBLE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".assemble")
	}

	viper.SetEnvPrefix("ASSEMBLE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindFlags(viper.GetViper(), rootCmd.PersistentFlags())

	// A missing or unreadable file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
