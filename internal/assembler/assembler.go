package assembler

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
	"github.com/conneroisu/assemble/internal/tracing"
)

// State is the phase of a run.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateDispatching
	StateDone
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ModuleLocator supplies the modules a run discovers. *module.Locator
// implements it.
type ModuleLocator interface {
	Resident(ctx context.Context) ([]module.Module, error)
	Filesystem(ctx context.Context, root string, recursive bool, resident []module.Module, yield func(module.Module) error) error
}

// Report summarizes one run.
type Report struct {
	RunID string `json:"run_id" yaml:"run_id"`
	// Modules and Processors are the ledger totals after the run.
	Modules    int `json:"modules" yaml:"modules"`
	Processors int `json:"processors" yaml:"processors"`
	// NewModules and NewProcessors were first recorded by this run.
	NewModules    int `json:"new_modules" yaml:"new_modules"`
	NewProcessors int `json:"new_processors" yaml:"new_processors"`
	// Dispatches counts Process calls made by this run.
	Dispatches int           `json:"dispatches" yaml:"dispatches"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Assembler drives discovery and dispatch. Create one with a Builder.
//
// Runs are serialized and accumulate: the ledger is never reset, so a
// second Run dispatches every previously discovered module again, to the
// old processors as well as any found since.
type Assembler struct {
	opts    Options
	locator ModuleLocator
	scanner *Scanner
	factory Factory
	logger  logging.Logger
	tracer  trace.Tracer
	errs    *errors.ErrorHandler

	state atomic.Int32

	mu     sync.Mutex
	ledger *Ledger
	// pending holds processors supplied up front that follow the first
	// type, registered in order on the first run.
	pending []upfront
	runs    int
}

func newAssembler(opts Options, locator ModuleLocator, factory Factory, logger logging.Logger, tracer trace.Tracer) *Assembler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracing.DefaultServiceName)
	}
	if factory == nil {
		factory = DefaultFactory{}
	}

	logger = logger.WithComponent("assembler")
	return &Assembler{
		opts:    opts,
		locator: locator,
		scanner: NewScanner(logger),
		factory: factory,
		logger:  logger,
		tracer:  tracer,
		errs:    errors.NewErrorHandler(logger),
		ledger:  NewLedger(),
	}
}

// Options returns the options the assembler was built with.
func (a *Assembler) Options() Options {
	return a.opts
}

// State returns the phase of the current or most recent run.
func (a *Assembler) State() State {
	return State(a.state.Load())
}

func (a *Assembler) setState(s State) {
	a.state.Store(int32(s))
}

// Runs returns the number of runs started.
func (a *Assembler) Runs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runs
}

// Modules returns every module discovered so far, in dispatch order.
func (a *Assembler) Modules() []module.Module {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Modules()
}

// Processors returns every known processor, in registration order.
func (a *Assembler) Processors() []Registration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Processors()
}

// Run scans for modules and processors, then hands every discovered module
// to every processor once, in discovery order.
//
// Tolerated failures (unloadable files, modules without identity) are
// logged and skipped. Anything else aborts the run and is returned along
// with the partial report. Cancelling ctx stops the run between modules.
func (a *Assembler) Run(ctx context.Context) (Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runs++
	report := Report{RunID: uuid.NewString()}
	started := time.Now()

	ctx = tracing.ContextWithRunID(ctx, report.RunID)
	logger := a.logger.With("run_id", report.RunID)
	perf := logging.StartOperation(logger, "assemble")

	ctx, span := a.tracer.Start(ctx, tracing.SpanRun, trace.WithAttributes(
		attribute.String(tracing.AttrRunID, report.RunID),
		attribute.Bool("assemble.scan.resident", a.opts.ScanResidentModules),
		attribute.Bool("assemble.scan.filesystem", a.opts.ScanFilesystemModules),
		attribute.Bool("assemble.discovery", a.opts.DiscoverProcessors),
	))

	err := a.run(ctx, logger, &report)

	report.Modules = a.ledger.Len()
	report.Processors = a.ledger.ProcessorCount()
	report.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int(tracing.AttrModuleCount, report.Modules),
		attribute.Int(tracing.AttrProcessorCnt, report.Processors),
	)

	if err != nil {
		a.setState(StateFailed)
		tracing.EndSpan(span, err, errorCode(err))
		a.errs.Handle(ctx, err)
		perf.EndWithError(ctx, err)
		return report, err
	}

	a.setState(StateDone)
	tracing.EndSpan(span, nil, "")
	perf.End(ctx,
		"modules", report.Modules,
		"new_modules", report.NewModules,
		"processors", report.Processors,
		"dispatches", report.Dispatches,
	)
	return report, nil
}

func (a *Assembler) run(ctx context.Context, logger logging.Logger, report *Report) error {
	a.setState(StateScanning)

	if err := a.instantiatePending(ctx, report); err != nil {
		return err
	}

	// Resident sources are asked once per run. The filesystem scan skips
	// files at their paths.
	var resident []module.Module
	if a.opts.ScanResidentModules {
		var err error
		if resident, err = a.scanResident(ctx, logger, report); err != nil {
			return err
		}
	}

	if a.opts.ScanFilesystemModules {
		if err := a.scanFilesystem(ctx, logger, resident, report); err != nil {
			return err
		}
	}

	a.setState(StateDispatching)
	return a.dispatch(ctx, logger, report)
}

func (a *Assembler) instantiatePending(ctx context.Context, report *Report) error {
	for len(a.pending) > 0 {
		u := a.pending[0]
		switch {
		case u.instance != nil:
			a.ledger.AddProcessor(Registration{Instance: u.instance})
		case !a.ledger.HasProcessor(u.typ):
			p, err := a.factory.Create(ctx, Candidate{Type: u.typ})
			if err != nil {
				return err
			}
			if a.ledger.AddProcessor(Registration{Type: u.typ, Instance: p}) {
				report.NewProcessors++
			}
		}
		a.pending = a.pending[1:]
	}
	a.pending = nil
	return nil
}

func (a *Assembler) scanResident(ctx context.Context, logger logging.Logger, report *Report) ([]module.Module, error) {
	ctx, span := a.tracer.Start(ctx, tracing.SpanResident)

	modules, err := a.locator.Resident(ctx)
	if err != nil {
		tracing.EndSpan(span, err, errorCode(err))
		return nil, err
	}

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			tracing.EndSpan(span, err, "")
			return nil, err
		}
		if err := a.discover(ctx, logger, m, report); err != nil {
			tracing.EndSpan(span, err, errorCode(err))
			return nil, err
		}
	}

	span.SetAttributes(attribute.Int(tracing.AttrModuleCount, len(modules)))
	tracing.EndSpan(span, nil, "")
	return modules, nil
}

func (a *Assembler) scanFilesystem(ctx context.Context, logger logging.Logger, resident []module.Module, report *Report) error {
	ctx, span := a.tracer.Start(ctx, tracing.SpanFilesystem, trace.WithAttributes(
		attribute.String(tracing.AttrScanRoot, a.opts.ScanRoot),
		attribute.Bool(tracing.AttrRecursive, a.opts.ScanRecursively),
	))

	logger.Debug(ctx, "Scanning filesystem", "root", a.opts.ScanRoot, "recursive", a.opts.ScanRecursively)

	err := a.locator.Filesystem(ctx, a.opts.ScanRoot, a.opts.ScanRecursively, resident, func(m module.Module) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return a.discover(ctx, logger, m, report)
	})

	tracing.EndSpan(span, err, errorCode(err))
	return err
}

// discover records m unless it lacks an identity or is already known,
// first instantiating any new processor types it exports.
func (a *Assembler) discover(ctx context.Context, logger logging.Logger, m module.Module, report *Report) error {
	id := m.CanonicalID()
	if id == "" {
		logger.Debug(ctx, "Module skipped", "path", m.Path, "reason", errors.ErrMissingIdentity(m.Path).Error())
		return nil
	}
	if a.ledger.Contains(id) {
		logger.Debug(ctx, "Module already discovered", "module", m.ID)
		return nil
	}

	if a.opts.DiscoverProcessors {
		if err := a.discoverProcessors(ctx, logger, m, report); err != nil {
			return err
		}
	}

	a.ledger.AddModule(m)
	report.NewModules++
	logger.Debug(ctx, "Module discovered", "module", m.ID, "path", m.Path)
	return nil
}

func (a *Assembler) discoverProcessors(ctx context.Context, logger logging.Logger, m module.Module, report *Report) error {
	ctx, span := a.tracer.Start(ctx, tracing.SpanDiscover, trace.WithAttributes(
		attribute.String(tracing.AttrModuleID, m.ID),
		attribute.String(tracing.AttrModulePath, m.Path),
	))

	candidates, err := a.scanner.Scan(ctx, m)
	if err != nil {
		tracing.EndSpan(span, err, errorCode(err))
		return err
	}

	created := 0
	for _, c := range candidates {
		if a.ledger.HasProcessor(c.Type) {
			continue
		}
		p, err := a.factory.Create(ctx, c)
		if err != nil {
			tracing.EndSpan(span, err, errorCode(err))
			return err
		}
		if a.ledger.AddProcessor(Registration{Type: c.Type, Instance: p, Module: m.ID}) {
			created++
			span.AddEvent("processor.created", trace.WithAttributes(
				attribute.String(tracing.AttrProcessorType, c.TypeName()),
			))
			logger.Info(ctx, "Processor registered", "processor", c.TypeName(), "module", m.ID)
		}
	}

	report.NewProcessors += created
	span.SetAttributes(attribute.Int(tracing.AttrProcessorCnt, created))
	tracing.EndSpan(span, nil, "")
	return nil
}

func (a *Assembler) dispatch(ctx context.Context, logger logging.Logger, report *Report) error {
	modules := a.ledger.Modules()
	processors := a.ledger.Processors()

	ctx, span := a.tracer.Start(ctx, tracing.SpanDispatch, trace.WithAttributes(
		attribute.Int(tracing.AttrModuleCount, len(modules)),
		attribute.Int(tracing.AttrProcessorCnt, len(processors)),
	))

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			tracing.EndSpan(span, err, "")
			return err
		}
		for _, r := range processors {
			r.Instance.Process(ctx, m)
			report.Dispatches++
		}
	}

	logger.Debug(ctx, "Dispatch complete", "modules", len(modules), "processors", len(processors))
	tracing.EndSpan(span, nil, "")
	return nil
}

func errorCode(err error) string {
	var ae *errors.AssembleError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
