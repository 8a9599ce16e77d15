// Package validation checks user-supplied paths, file extensions and
// endpoints before they reach the filesystem or the network.
package validation

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
)

// restrictedPaths never hold module binaries.
var restrictedPaths = []string{
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
}

// ValidatePath validates a directory or file path taken from configuration
// or flags.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	cleanPath := filepath.ToSlash(filepath.Clean(path))
	cleanPathLower := strings.ToLower(cleanPath) + "/"
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(cleanPathLower, restricted) {
			return fmt.Errorf("access to restricted path denied: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateExtension validates a module binary extension such as ".so".
func ValidateExtension(ext string) error {
	if ext == "" {
		return fmt.Errorf("extension cannot be empty")
	}
	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return fmt.Errorf("extension %q must start with a dot", ext)
	}
	if strings.ContainsAny(ext[1:], `./\*?[]`) || strings.ContainsAny(ext, " \t") {
		return fmt.Errorf("extension %q must be a single suffix", ext)
	}
	return nil
}

// ValidateEndpoint validates a host:port collector address.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if strings.Contains(endpoint, "://") {
		return fmt.Errorf("endpoint %q must be host:port without a scheme", endpoint)
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("endpoint %q has invalid port %q", endpoint, port)
	}
	return nil
}

// SanitizeInput removes null bytes and control characters other than
// common whitespace, e.g. from module identities read out of binaries.
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
