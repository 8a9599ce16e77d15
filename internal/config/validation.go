package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/tracing"
	"github.com/conneroisu/assemble/internal/validation"
)

// minDebounce is the shortest debounce that does not risk running once per
// write while a module binary is still being copied in.
const minDebounce = 50 * time.Millisecond

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateScanConfigDetails(&config.Scan, result)
	validateDiscoveryConfigDetails(config, result)
	validateLogConfigDetails(&config.Log, result)
	validateTracingConfigDetails(&config.Tracing, result)
	validateWatchConfigDetails(&config.Watch, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateScanConfigDetails(config *ScanConfig, result *ValidationResult) {
	if !config.Resident && !config.Filesystem {
		result.addWarning("scan", nil, "both resident and filesystem scanning are disabled",
			"Enable scan.filesystem to load module binaries",
			"Enable scan.resident to process modules linked into the host")
	}

	if config.BuildInfo && !config.Resident {
		result.addWarning("scan.build_info", config.BuildInfo, "build_info has no effect while scan.resident is disabled")
	}

	if config.Root != "" {
		if err := validation.ValidatePath(config.Root); err != nil {
			result.addError("scan.root", config.Root, err.Error(),
				"Use a plain directory path such as ./plugins",
				"Leave scan.root empty to scan the executable's directory")
		} else if config.Filesystem && !pathExists(config.Root) {
			result.addWarning("scan.root", config.Root, "directory does not exist; filesystem scans will find nothing",
				fmt.Sprintf("Create it with: mkdir -p %s", config.Root))
		}
	}

	seen := make(map[string]bool, len(config.Extensions))
	for _, ext := range config.Extensions {
		if err := validation.ValidateExtension(ext); err != nil {
			result.addError("scan.extensions", ext, err.Error(),
				"Extensions look like .so or .plugin")
			continue
		}
		key := strings.ToLower(ext)
		if seen[key] {
			result.addWarning("scan.extensions", ext, "duplicate extension (extensions match case-insensitively)")
		}
		seen[key] = true
	}
}

func validateDiscoveryConfigDetails(config *Config, result *ValidationResult) {
	seen := make(map[string]bool, len(config.Discovery.Builtin))
	for _, name := range config.Discovery.Builtin {
		if strings.TrimSpace(name) == "" {
			result.addError("discovery.builtin", name, "empty processor name")
			continue
		}
		if seen[name] {
			result.addWarning("discovery.builtin", name, "processor listed more than once")
		}
		seen[name] = true
	}

	if !config.Discovery.Processors && len(config.Discovery.Builtin) == 0 {
		result.addWarning("discovery", nil, "no processors will receive modules",
			"Enable discovery.processors or list builtin processors")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(),
			"Valid levels: debug, info, warn, error")
	}

	switch strings.ToLower(config.Format) {
	case "", "text", "json":
	default:
		result.addError("log.format", config.Format, fmt.Sprintf("unknown log format %q", config.Format),
			"Valid formats: text, json")
	}
}

func validateTracingConfigDetails(config *tracing.Config, result *ValidationResult) {
	if !tracing.ValidExporter(config.Exporter) {
		result.addError("tracing.exporter", config.Exporter, fmt.Sprintf("unknown exporter %q", config.Exporter),
			"Valid exporters: none, file, stdout, otlp")
	}

	if config.SampleRate < 0 || config.SampleRate > 1 {
		result.addError("tracing.sample_rate", config.SampleRate, "sample rate must be between 0 and 1")
	}

	if !config.Enabled {
		return
	}

	switch config.Exporter {
	case tracing.ExporterFile:
		if config.FilePath == "" {
			result.addError("tracing.file_path", config.FilePath, "file_path is required for the file exporter",
				"Set tracing.file_path, e.g. ./assemble-traces.jsonl")
		} else if err := validation.ValidatePath(config.FilePath); err != nil {
			result.addError("tracing.file_path", config.FilePath, err.Error())
		}
	case tracing.ExporterOTLP:
		if config.OTLPEndpoint != "" {
			if err := validation.ValidateEndpoint(config.OTLPEndpoint); err != nil {
				result.addError("tracing.otlp_endpoint", config.OTLPEndpoint, err.Error(),
					"Use host:port, e.g. localhost:4317")
			}
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("watch.debounce", config.Debounce, "debounce cannot be negative")
	} else if config.Debounce > 0 && config.Debounce < minDebounce {
		result.addWarning("watch.debounce", config.Debounce,
			fmt.Sprintf("debounce below %s may run while module files are still being written", minDebounce))
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}
