package assembler

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel/trace"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
)

// Builder configures and creates an Assembler.
//
//	a, err := assembler.NewBuilder().
//		Configure(func(o *assembler.Options) { o.ScanRoot = "./plugins" }).
//		WithProcessor(audit.New()).
//		Build()
type Builder struct {
	opts       Options
	processors []upfront
	factory    Factory
	resident   []module.ResidentSource
	loader     module.ModuleLoader
	locator    ModuleLocator
	logger     logging.Logger
	tracer     trace.Tracer
	errs       []error
}

// upfront is a processor supplied to the Builder: an instance, a type for
// the factory, or a tag to resolve from a container.
type upfront struct {
	instance Processor
	typ      reflect.Type
	tagged   TaggedResolver
	tag      string
}

// NewBuilder starts from DefaultOptions.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultOptions()}
}

// WithOptions replaces the options.
func (b *Builder) WithOptions(opts Options) *Builder {
	b.opts = opts
	return b
}

// Configure edits the options in place.
func (b *Builder) Configure(fn func(*Options)) *Builder {
	if fn != nil {
		fn(&b.opts)
	}
	return b
}

// WithProcessor registers an already constructed processor.
func (b *Builder) WithProcessor(p Processor) *Builder {
	if p == nil {
		b.errs = append(b.errs, fmt.Errorf("nil processor"))
		return b
	}
	b.processors = append(b.processors, upfront{instance: p})
	return b
}

// WithProcessorType registers a processor type to be instantiated by the
// factory when the first run starts. It keeps its place among the other
// processors supplied to the Builder.
func (b *Builder) WithProcessorType(t reflect.Type) *Builder {
	if !isProcessorType(t) {
		b.errs = append(b.errs, fmt.Errorf("%v is not a concrete Processor type", t))
		return b
	}
	b.processors = append(b.processors, upfront{typ: t})
	return b
}

// WithContainerProcessors registers every service r holds under tag, in
// the order r returns them. They are resolved by Build.
func (b *Builder) WithContainerProcessors(r TaggedResolver, tag string) *Builder {
	if r == nil {
		b.errs = append(b.errs, fmt.Errorf("nil resolver for %q processors", tag))
		return b
	}
	b.processors = append(b.processors, upfront{tagged: r, tag: tag})
	return b
}

// WithFactory sets the factory used to instantiate processor types.
func (b *Builder) WithFactory(f Factory) *Builder {
	b.factory = f
	return b
}

// WithContainer instantiates processor types from r, typically a
// *di.ServiceContainer.
func (b *Builder) WithContainer(r Resolver) *Builder {
	b.factory = NewContainerFactory(r)
	return b
}

// WithResident adds sources of resident modules.
func (b *Builder) WithResident(sources ...module.ResidentSource) *Builder {
	b.resident = append(b.resident, sources...)
	return b
}

// WithLoader sets the loader for module binaries.
func (b *Builder) WithLoader(l module.ModuleLoader) *Builder {
	b.loader = l
	return b
}

// WithLocator replaces module location entirely. Resident sources, the
// loader and Options.Extensions are then ignored.
func (b *Builder) WithLocator(l ModuleLocator) *Builder {
	b.locator = l
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithTracer sets the tracer runs are traced with.
func (b *Builder) WithTracer(t trace.Tracer) *Builder {
	b.tracer = t
	return b
}

// Build validates the configuration and creates the Assembler.
func (b *Builder) Build() (*Assembler, error) {
	if len(b.errs) > 0 {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, b.errs[0].Error())
	}
	if err := b.opts.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	locator := b.locator
	if locator == nil {
		locator = module.NewLocator(module.LocatorConfig{
			Resident:   b.resident,
			Loader:     b.loader,
			Extensions: b.opts.Extensions,
			Logger:     logger,
		})
	}

	pending, err := b.expand()
	if err != nil {
		return nil, err
	}

	a := newAssembler(b.opts, locator, b.factory, logger, b.tracer)

	// Instances ahead of the first type are registered now. The rest wait
	// for the first run so that types keep their position.
	for len(pending) > 0 && pending[0].instance != nil {
		a.ledger.AddProcessor(Registration{Instance: pending[0].instance})
		pending = pending[1:]
	}
	a.pending = pending

	return a, nil
}

// expand replaces each tagged entry with the processors it resolves to.
func (b *Builder) expand() ([]upfront, error) {
	out := make([]upfront, 0, len(b.processors))
	for _, u := range b.processors {
		if u.tagged == nil {
			out = append(out, u)
			continue
		}

		services, err := u.tagged.GetByTag(u.tag)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("cannot resolve %q processors: %v", u.tag, err))
		}
		for _, service := range services {
			p, ok := service.(Processor)
			if !ok || isNil(reflect.ValueOf(service)) {
				return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("service %T tagged %q is not a processor", service, u.tag))
			}
			out = append(out, upfront{instance: p})
		}
	}
	return out, nil
}

// Assemble builds the Assembler and runs it once.
func (b *Builder) Assemble(ctx context.Context) (*Assembler, Report, error) {
	a, err := b.Build()
	if err != nil {
		return nil, Report{}, err
	}
	report, err := a.Run(ctx)
	return a, report, err
}
