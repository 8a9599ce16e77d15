// Package config loads assemble's configuration using Viper, from a YAML
// file, ASSEMBLE_ environment variables and command-line flags.
//
// Unset keys fall back to the defaults registered by SetDefaults. Load
// validates the result and rejects unsafe scan roots, unknown log levels
// and unknown trace exporters.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/assemble/internal/assembler"
	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
	"github.com/conneroisu/assemble/internal/tracing"
)

// DefaultDebounce is how long the watcher waits for filesystem events to
// settle before starting a run.
const DefaultDebounce = 300 * time.Millisecond

type Config struct {
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Tracing   tracing.Config  `mapstructure:"tracing" yaml:"tracing"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
}

type ScanConfig struct {
	// Resident feeds the host's own modules through discovery.
	Resident bool `mapstructure:"resident" yaml:"resident"`
	// BuildInfo adds every module linked into the host binary, as recorded
	// in its build information, to the resident modules.
	BuildInfo bool `mapstructure:"build_info" yaml:"build_info"`
	// Filesystem loads module binaries found under Root.
	Filesystem bool `mapstructure:"filesystem" yaml:"filesystem"`
	Recursive  bool `mapstructure:"recursive" yaml:"recursive"`
	// Root defaults to the directory of the running executable.
	Root       string   `mapstructure:"root" yaml:"root"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

type DiscoveryConfig struct {
	// Processors instantiates processor types exported by modules.
	Processors bool `mapstructure:"processors" yaml:"processors"`
	// Builtin names the host's own processors to register up front.
	Builtin []string `mapstructure:"builtin" yaml:"builtin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Resident:   true,
			BuildInfo:  false,
			Filesystem: true,
			Recursive:  true,
			Extensions: append([]string(nil), module.DefaultExtensions...),
		},
		Discovery: DiscoveryConfig{
			Processors: true,
			Builtin:    []string{"inventory"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: tracing.DefaultConfig(),
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
		},
	}
}

// SetDefaults registers the defaults on v so that every key is known to
// Unmarshal and to environment lookups.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("scan.resident", d.Scan.Resident)
	v.SetDefault("scan.build_info", d.Scan.BuildInfo)
	v.SetDefault("scan.filesystem", d.Scan.Filesystem)
	v.SetDefault("scan.recursive", d.Scan.Recursive)
	v.SetDefault("scan.root", d.Scan.Root)
	v.SetDefault("scan.extensions", d.Scan.Extensions)

	v.SetDefault("discovery.processors", d.Discovery.Processors)
	v.SetDefault("discovery.builtin", d.Discovery.Builtin)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// Load reads the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and rejects it if invalid.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode reads the configuration from v without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Slices set through the environment arrive as a single
	// comma-separated string.
	config.Scan.Extensions = splitList(config.Scan.Extensions)
	config.Discovery.Builtin = splitList(config.Discovery.Builtin)

	return &config, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, first.Error()).
		WithContext("field", first.Field)
}

// ScanRoot returns the configured scan root, or the executable's
// directory when none is set.
func (c *Config) ScanRoot() string {
	if strings.TrimSpace(c.Scan.Root) == "" {
		return assembler.DefaultScanRoot()
	}
	return c.Scan.Root
}

// AssemblerOptions converts the scan and discovery sections.
func (c *Config) AssemblerOptions() assembler.Options {
	exts := c.Scan.Extensions
	if len(exts) == 0 {
		exts = module.DefaultExtensions
	}
	return assembler.Options{
		ScanResidentModules:   c.Scan.Resident,
		ScanFilesystemModules: c.Scan.Filesystem,
		ScanRecursively:       c.Scan.Recursive,
		DiscoverProcessors:    c.Discovery.Processors,
		ScanRoot:              c.ScanRoot(),
		Extensions:            append([]string(nil), exts...),
	}
}

// LoggerConfig converts the log section. Logs go to stderr.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).
			WithContext("field", "log.level")
	}
	format := strings.ToLower(c.Log.Format)
	if format == "" {
		format = "text"
	}
	return &logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	}, nil
}

// TracingConfig returns the tracing section with unset fields defaulted.
func (c *Config) TracingConfig() tracing.Config {
	cfg := c.Tracing
	d := tracing.DefaultConfig()
	if cfg.Exporter == "" {
		cfg.Exporter = d.Exporter
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = d.OTLPEndpoint
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = d.SampleRate
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = d.ServiceName
	}
	return cfg
}
