package module

import (
	"context"
	"debug/buildinfo"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"plugin"
	"sync"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/logging"
)

// commandLinePackage is the package path the toolchain records for binaries
// built from a file list rather than a package.
const commandLinePackage = "command-line-arguments"

// Opener turns a validated module binary into a Handle.
type Opener interface {
	Open(path string) (Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Handle, error)

// Open calls f.
func (f OpenerFunc) Open(path string) (Handle, error) {
	return f(path)
}

// PluginOpener opens module binaries with the Go plugin package.
type PluginOpener struct{}

// Open loads the plugin and resolves its Exports symbol. A plugin without
// the symbol has no exports.
func (PluginOpener) Open(path string) (Handle, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.ErrModuleLoadFailed(path, err)
	}

	sym, err := p.Lookup(ExportsSymbol)
	if err != nil {
		return StaticHandle(nil), nil
	}

	switch fn := sym.(type) {
	case func() []any:
		return exportsFunc(fn), nil
	case *func() []any:
		if fn == nil || *fn == nil {
			return StaticHandle(nil), nil
		}
		return exportsFunc(*fn), nil
	case *[]any:
		return StaticHandle(*fn), nil
	default:
		return nil, errors.ErrModuleMalformed(path,
			fmt.Errorf("symbol %s has type %T, want func() []any", ExportsSymbol, sym))
	}
}

// exportsFunc is a Handle backed by a module's entry point.
type exportsFunc func() []any

// Exports calls the entry point, turning a panic into an error.
func (f exportsFunc) Exports() (exports []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", ExportsSymbol, r)
		}
	}()
	return f(), nil
}

// ModuleLoader loads a single module binary.
type ModuleLoader interface {
	Load(path string) (Module, error)
}

// Loader validates module binaries and opens them. Loaded modules are
// remembered by path and never unloaded.
type Loader struct {
	opener Opener
	logger logging.Logger

	mu     sync.Mutex
	loaded []Module
	byPath map[string]int
}

// NewLoader creates a loader. A nil opener defaults to PluginOpener.
func NewLoader(opener Opener, logger logging.Logger) *Loader {
	if opener == nil {
		opener = PluginOpener{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Loader{
		opener: opener,
		logger: logger.WithComponent("loader"),
		byPath: make(map[string]int),
	}
}

// Load reads the binary at path, derives its identity from the Go build
// information and opens it.
//
// Failures the scan tolerates are load errors (not found, in use, malformed,
// load failed). Anything else is an io error.
func (l *Loader) Load(path string) (Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Module{}, errors.ErrModuleUnreadable(path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, ok := l.byPath[abs]; ok {
		return l.loaded[idx], nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Module{}, errors.ErrModuleNotFound(abs, err)
		}
		return Module{}, errors.ErrModuleUnreadable(abs, err)
	}
	if info.IsDir() {
		return Module{}, errors.ErrModuleMalformed(abs, fmt.Errorf("%s is a directory", abs))
	}

	id, err := readIdentity(abs)
	if err != nil {
		return Module{}, err
	}

	handle, err := l.opener.Open(abs)
	if err != nil {
		var ae *errors.AssembleError
		if stderrors.As(err, &ae) {
			return Module{}, ae.WithPath(abs)
		}
		return Module{}, errors.ErrModuleLoadFailed(abs, err)
	}

	m := Module{ID: id, Path: abs, Handle: handle}
	l.byPath[abs] = len(l.loaded)
	l.loaded = append(l.loaded, m)

	l.logger.Debug(context.Background(), "Module loaded", "module", id, "path", abs)

	return m, nil
}

// Loaded returns every module loaded so far, in load order.
func (l *Loader) Loaded() []Module {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Module, len(l.loaded))
	copy(out, l.loaded)
	return out
}

func readIdentity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case stderrors.Is(err, fs.ErrNotExist):
			return "", errors.ErrModuleNotFound(path, err)
		case isInUse(err):
			return "", errors.ErrModuleInUse(path, err)
		default:
			return "", errors.ErrModuleUnreadable(path, err)
		}
	}
	defer f.Close()

	bi, err := buildinfo.Read(f)
	if err != nil {
		var pathErr *fs.PathError
		if stderrors.As(err, &pathErr) {
			if isInUse(err) {
				return "", errors.ErrModuleInUse(path, err)
			}
			return "", errors.ErrModuleUnreadable(path, err)
		}
		return "", errors.ErrModuleMalformed(path, err)
	}

	return identify(bi, path), nil
}

// identify builds "<package path>@<version>" from build information.
func identify(bi *buildinfo.BuildInfo, path string) string {
	pkg := bi.Path
	if pkg == "" {
		return ""
	}
	if pkg == commandLinePackage {
		pkg += "/" + filepath.Base(path)
	}
	return versioned(pkg, bi.Main.Version)
}
