package validation

import (
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "relative directory",
			path:    "./plugins",
			wantErr: false,
		},
		{
			name:    "absolute directory",
			path:    "/opt/app/modules",
			wantErr: false,
		},
		{
			name:    "sibling directory",
			path:    "../modules",
			wantErr: false,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			path:    "   ",
			wantErr: true,
		},
		{
			name:    "access to /proc",
			path:    "/proc/self",
			wantErr: true,
		},
		{
			name:    "access to /sys itself",
			path:    "/sys",
			wantErr: true,
		},
		{
			name:    "access to /dev",
			path:    "/DEV/shm",
			wantErr: true,
		},
		{
			name:    "prefix that only looks restricted",
			path:    "/devtools/plugins",
			wantErr: false,
		},
		{
			name:    "path with dangerous characters",
			path:    "plugins; rm -rf /",
			wantErr: true,
		},
		{
			name:    "path with command substitution",
			path:    "plugins$(whoami)",
			wantErr: true,
		},
		{
			name:    "null byte",
			path:    "plugins\x00evil",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		ext     string
		wantErr bool
	}{
		{".so", false},
		{".SO", false},
		{".dylib", false},
		{"", true},
		{".", true},
		{"so", true},
		{".tar.gz", true},
		{".s*", true},
		{". so", true},
		{"./so", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			err := ValidateExtension(tt.ext)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExtension(%q) error = %v, wantErr %v", tt.ext, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
	}{
		{"localhost:4317", false},
		{"collector.internal:55680", false},
		{"[::1]:4317", false},
		{"", true},
		{"localhost", true},
		{":4317", true},
		{"localhost:0", true},
		{"localhost:99999", true},
		{"localhost:otlp", true},
		{"http://localhost:4317", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			err := ValidateEndpoint(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean identity",
			input:    "example.com/plugins@v1.2.0",
			expected: "example.com/plugins@v1.2.0",
		},
		{
			name:     "null bytes",
			input:    "mod\x00ule",
			expected: "module",
		},
		{
			name:     "terminal escape",
			input:    "mod\x1b[31mule",
			expected: "mod[31mule",
		},
		{
			name:     "whitespace kept",
			input:    "a\tb\nc",
			expected: "a\tb\nc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeInput(tt.input); got != tt.expected {
				t.Errorf("SanitizeInput() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func BenchmarkValidatePath(b *testing.B) {
	path := strings.Repeat("plugins/", 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ValidatePath(path)
	}
}
