package assembler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/module"
)

// Options controls what a run scans.
type Options struct {
	// ScanResidentModules feeds the host's resident modules through discovery.
	ScanResidentModules bool `json:"scan_resident_modules" yaml:"scan_resident_modules"`
	// ScanFilesystemModules loads module binaries found under ScanRoot.
	ScanFilesystemModules bool `json:"scan_filesystem_modules" yaml:"scan_filesystem_modules"`
	// ScanRecursively descends into subdirectories of ScanRoot.
	ScanRecursively bool `json:"scan_recursively" yaml:"scan_recursively"`
	// DiscoverProcessors instantiates Processor types exported by modules.
	// When false only the up-front processors receive modules.
	DiscoverProcessors bool `json:"discover_processors" yaml:"discover_processors"`
	// ScanRoot is the directory searched for module binaries.
	ScanRoot string `json:"scan_root" yaml:"scan_root"`
	// Extensions are the module binary file extensions, matched
	// case-insensitively.
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// DefaultOptions enables every scan, rooted at DefaultScanRoot.
func DefaultOptions() Options {
	return Options{
		ScanResidentModules:   true,
		ScanFilesystemModules: true,
		ScanRecursively:       true,
		DiscoverProcessors:    true,
		ScanRoot:              DefaultScanRoot(),
		Extensions:            append([]string(nil), module.DefaultExtensions...),
	}
}

// DefaultScanRoot is the directory holding the running executable, or the
// working directory when that cannot be determined.
func DefaultScanRoot() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if o.ScanFilesystemModules && strings.TrimSpace(o.ScanRoot) == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"scan root is required when filesystem scanning is enabled")
	}

	for _, ext := range o.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid module extension %q: must start with a dot", ext)).
				WithContext("extension", ext)
		}
	}

	return nil
}
