package module

import (
	"context"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/logging"
)

// DefaultExtensions lists the file extensions treated as module binaries.
var DefaultExtensions = []string{".so"}

// LocatorConfig configures a Locator.
type LocatorConfig struct {
	// Resident supplies the modules already resident in the process.
	Resident []ResidentSource
	// Loader loads candidate files. Defaults to a Loader with PluginOpener.
	Loader ModuleLoader
	// Extensions are matched case-insensitively. Defaults to DefaultExtensions.
	Extensions []string
	Logger     logging.Logger
}

// Locator enumerates resident modules and module binaries on disk.
type Locator struct {
	resident   []ResidentSource
	loader     ModuleLoader
	extensions []string
	logger     logging.Logger
}

// NewLocator creates a locator from cfg.
func NewLocator(cfg LocatorConfig) *Locator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	loader := cfg.Loader
	if loader == nil {
		loader = NewLoader(nil, logger)
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	return &Locator{
		resident:   cfg.Resident,
		loader:     loader,
		extensions: exts,
		logger:     logger.WithComponent("locator"),
	}
}

// Resident returns the modules of every resident source, in source order.
func (l *Locator) Resident(ctx context.Context) ([]Module, error) {
	var modules []Module
	for _, src := range l.resident {
		found, err := src.Modules(ctx)
		if err != nil {
			return nil, errors.NewScanError(errors.ErrCodeInternalError,
				"resident module source failed", err)
		}
		modules = append(modules, found...)
	}
	return modules, nil
}

// Filesystem loads every module binary under root and passes it to yield in
// lexical path order. Only the top directory is read unless recursive is set.
//
// Files at the path of a module in resident are skipped. Callers pass the
// modules Resident returned for the same run. Tolerated load failures are
// logged and skipped; any other failure, or an error from yield, stops the
// walk and is returned.
func (l *Locator) Filesystem(ctx context.Context, root string, recursive bool, resident []Module, yield func(Module) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errors.NewScanError(errors.ErrCodeScanRoot, "invalid scan root", err).WithPath(root)
	}

	skip := residentPaths(resident)

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot && stderrors.Is(err, fs.ErrNotExist) {
				l.logger.Warn(ctx, err, "Scan root does not exist", "root", absRoot)
				return filepath.SkipAll
			}
			return errors.NewIOError(errors.ErrCodeScanRoot, "cannot read scan directory", err).WithPath(path)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if path != absRoot && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !l.matches(path) {
			return nil
		}
		if _, ok := skip[foldPath(path)]; ok {
			l.logger.Debug(ctx, "Skipping resident module file", "path", path)
			return nil
		}

		m, err := l.loader.Load(path)
		if err != nil {
			if errors.IsTolerated(err) {
				l.logger.Debug(ctx, "Skipping module file", "path", path, "reason", err.Error())
				return nil
			}
			return err
		}

		return yield(m)
	})

	if walkErr != nil && !stderrors.Is(walkErr, filepath.SkipAll) {
		return walkErr
	}
	return nil
}

func (l *Locator) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range l.extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func residentPaths(modules []Module) map[string]struct{} {
	paths := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		if m.Path == "" {
			continue
		}
		abs, err := filepath.Abs(m.Path)
		if err != nil {
			continue
		}
		paths[foldPath(abs)] = struct{}{}
	}
	return paths
}

func foldPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
