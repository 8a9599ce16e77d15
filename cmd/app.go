package cmd

import (
	"context"
	"fmt"
	"reflect"

	"github.com/conneroisu/assemble/internal/assembler"
	"github.com/conneroisu/assemble/internal/config"
	"github.com/conneroisu/assemble/internal/di"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
	"github.com/conneroisu/assemble/internal/processors"
	"github.com/conneroisu/assemble/internal/tracing"
	"github.com/conneroisu/assemble/internal/version"
)

// Container names of the services the commands add to the core ones.
const (
	serviceTracing   = "tracing"
	serviceInventory = "inventory"
)

// tagBuiltin marks the builtin processors turned on for a command. They
// are the first processors the assembler dispatches to.
const tagBuiltin = "builtin"

// hostModulePath identifies this binary among resident modules.
const hostModulePath = "github.com/conneroisu/assemble"

// app holds everything one command invocation assembles with.
type app struct {
	config    *config.Config
	container *di.ServiceContainer
	logger    logging.Logger
	builtins  *processors.Set
	assembler *assembler.Assembler
}

// newApp loads the configuration and wires an assembler from it. The
// inventory is always available for injection into module processors, and
// is registered as a processor when named in discovery.builtin or extra.
func newApp(extra ...string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	container := di.NewServiceContainer(cfg)
	if err := container.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize service container: %w", err)
	}

	builtin := append(append([]string(nil), cfg.Discovery.Builtin...), extra...)
	a, err := wire(cfg, container, builtin)
	if err != nil {
		_ = container.Shutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func wire(cfg *config.Config, container *di.ServiceContainer, builtin []string) (*app, error) {
	logger, err := container.GetLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to get logger: %w", err)
	}
	loader, err := container.GetLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to get module loader: %w", err)
	}

	provider, err := tracing.NewProvider(cfg.TracingConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}
	container.RegisterInstance(serviceTracing, provider)

	builtins := processors.NewSet(logger.WithComponent("processors"))
	container.RegisterInstance(serviceInventory, builtins.Inventory).
		WithType(reflect.TypeOf(builtins.Inventory))

	procs, err := builtins.Lookup(builtin)
	if err != nil {
		return nil, err
	}
	for _, p := range procs {
		container.RegisterInstance(fmt.Sprintf("%s.%T", tagBuiltin, p), p).WithTag(tagBuiltin)
	}
	logger.Debug(context.Background(), "service container ready", "services", container.ListServices())

	b := assembler.NewBuilder().
		WithOptions(cfg.AssemblerOptions()).
		WithContainer(container).
		WithContainerProcessors(container, tagBuiltin).
		WithLoader(loader).
		WithLogger(logger.WithComponent("assembler")).
		WithTracer(provider.Tracer()).
		WithResident(residentSources(cfg)...)

	asm, err := b.Build()
	if err != nil {
		return nil, err
	}

	return &app{
		config:    cfg,
		container: container,
		logger:    logger,
		builtins:  builtins,
		assembler: asm,
	}, nil
}

// residentSources lists this binary as a resident module, or every module
// linked into it when build info scanning is on.
func residentSources(cfg *config.Config) []module.ResidentSource {
	if cfg.Scan.BuildInfo {
		return []module.ResidentSource{module.NewBuildInfoSource(nil)}
	}
	return []module.ResidentSource{
		module.ResidentList{module.Static(hostModulePath + "@" + version.GetVersion())},
	}
}

// Close shuts the container down, flushing any pending trace spans.
func (a *app) Close(ctx context.Context) error {
	return a.container.Shutdown(ctx)
}
