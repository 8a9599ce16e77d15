package module

import (
	"context"
	"runtime/debug"
)

// ResidentSource yields modules already resident in the process.
type ResidentSource interface {
	Modules(ctx context.Context) ([]Module, error)
}

// ResidentFunc adapts a function to ResidentSource.
type ResidentFunc func(ctx context.Context) ([]Module, error)

// Modules calls f.
func (f ResidentFunc) Modules(ctx context.Context) ([]Module, error) {
	return f(ctx)
}

// ResidentList is a fixed, host-supplied list of resident modules.
type ResidentList []Module

// Modules returns a copy of the list.
func (l ResidentList) Modules(ctx context.Context) ([]Module, error) {
	out := make([]Module, len(l))
	copy(out, l)
	return out, nil
}

// BuildInfoSource reports the Go modules linked into the running binary.
//
// Build information carries identities only, so each module has no exports
// unless the host attaches some through Exports, keyed by module path.
type BuildInfoSource struct {
	// Exports attaches export lists to linked modules by module path.
	Exports map[string][]any

	// read defaults to debug.ReadBuildInfo.
	read func() (*debug.BuildInfo, bool)
}

// NewBuildInfoSource creates a source over the running binary's build info.
func NewBuildInfoSource(exports map[string][]any) *BuildInfoSource {
	return &BuildInfoSource{
		Exports: exports,
		read:    debug.ReadBuildInfo,
	}
}

// Modules lists the main module followed by every dependency, in the
// order the toolchain recorded them.
func (s *BuildInfoSource) Modules(ctx context.Context) ([]Module, error) {
	read := s.read
	if read == nil {
		read = debug.ReadBuildInfo
	}

	info, ok := read()
	if !ok || info == nil {
		return nil, nil
	}

	exports := make(map[string][]any, len(s.Exports))
	for path, values := range s.Exports {
		exports[Canonical(path)] = values
	}

	modules := make([]Module, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		modules = append(modules, s.fromDebug(&info.Main, exports))
	}
	for _, dep := range info.Deps {
		if dep == nil || dep.Path == "" {
			continue
		}
		modules = append(modules, s.fromDebug(dep, exports))
	}

	return modules, nil
}

func (s *BuildInfoSource) fromDebug(m *debug.Module, exports map[string][]any) Module {
	id := versioned(m.Path, m.Version)
	if m.Replace != nil {
		id += " => " + versioned(m.Replace.Path, m.Replace.Version)
	}

	return Module{
		ID:     id,
		Handle: StaticHandle(exports[Canonical(m.Path)]),
	}
}

func versioned(path, version string) string {
	if version == "" {
		version = "(devel)"
	}
	return path + "@" + version
}
