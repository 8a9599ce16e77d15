package assembler

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/module"
	"github.com/conneroisu/assemble/internal/tracing"
)

func build(t *testing.T, b *Builder) *Assembler {
	t.Helper()
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

func ids(modules []module.Module) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		out = append(out, m.ID)
	}
	return out
}

func copyExecutable(t *testing.T, dst string) {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)
	src, err := os.Open(exe)
	require.NoError(t, err)
	defer src.Close()

	out, err := os.Create(dst)
	require.NoError(t, err)
	defer out.Close()

	_, err = io.Copy(out, src)
	require.NoError(t, err)
}

func TestRunDispatchesEveryModuleToEveryProcessor(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{
		resident: []module.Module{
			module.Static("host@v1", alphaProcessor{}),
			module.Static("lib@v1"),
		},
		files: []module.Module{
			{ID: "plugin@v2", Path: "/plugins/plugin.so", Handle: module.StaticHandle{(*betaProcessor)(nil)}},
		},
	}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc))

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	want := []string{"host@v1", "lib@v1", "plugin@v2"}
	assert.Equal(t, want, calls.modulesFor("alpha"))
	assert.Equal(t, want, calls.modulesFor("beta"))
	assert.Equal(t, 6, calls.len())

	assert.Equal(t, 3, report.Modules)
	assert.Equal(t, 3, report.NewModules)
	assert.Equal(t, 2, report.Processors)
	assert.Equal(t, 2, report.NewProcessors)
	assert.Equal(t, 6, report.Dispatches)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, StateDone, a.State())

	regs := a.Processors()
	require.Len(t, regs, 2)
	assert.Equal(t, "host@v1", regs[0].Module)
	assert.Equal(t, "plugin@v2", regs[1].Module)

	assert.Equal(t, "/plugins", loc.lastRoot)
	assert.False(t, loc.lastRecursive)
}

func TestRunModuleWithoutProcessorsIsStillDispatched(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{module.Static("empty@v1")}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(alphaProcessor{}))

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"empty@v1"}, calls.modulesFor("alpha"))
}

func TestRunDeduplicatesModulesCaseInsensitively(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{
		resident: []module.Module{
			module.Static("Example.com/Shared@v1"),
			module.Static("example.com/shared@v1"),
		},
		files: []module.Module{
			{ID: "EXAMPLE.COM/SHARED@V1", Path: "/plugins/shared.so"},
			{ID: "example.com/other@v1", Path: "/plugins/other.so"},
		},
	}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(alphaProcessor{}))

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Example.com/Shared@v1", "example.com/other@v1"}, calls.modulesFor("alpha"))
	assert.Equal(t, 2, report.Modules)
	assert.Empty(t, a.Modules()[0].Path, "first occurrence is kept")
}

func TestRunInstantiatesEachProcessorTypeOnce(t *testing.T) {
	calls.reset()
	gammaCreated.Store(0)

	loc := &fakeLocator{
		resident: []module.Module{
			module.Static("one@v1", newGamma, alphaProcessor{}),
			module.Static("two@v1", newGamma, (*gammaProcessor)(nil)),
		},
		files: []module.Module{
			{ID: "three@v1", Handle: module.StaticHandle{newGamma}},
		},
	}
	a := build(t, NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithProcessor(alphaProcessor{}))

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), gammaCreated.Load())
	assert.Equal(t, 2, report.Processors)
	assert.Equal(t, 1, report.NewProcessors, "alpha was supplied up front")
	assert.Equal(t, []string{"one@v1", "two@v1", "three@v1"}, calls.modulesFor("gamma"))
}

func TestRunProcessorTypes(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a := build(t, NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithProcessorType(ProcessorType[*betaProcessor]()).
		WithProcessorType(ProcessorType[*betaProcessor]()))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewProcessors)
	assert.Equal(t, []string{"m@v1"}, calls.modulesFor("beta"))
}

func TestRunKeepsUpfrontProcessorOrder(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a := build(t, NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithProcessorType(ProcessorType[*betaProcessor]()).
		WithProcessor(alphaProcessor{}))

	assert.Empty(t, a.Processors(), "alpha follows a type")

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewProcessors)
	assert.Equal(t, []string{"beta", "alpha"}, calls.processors())

	regs := a.Processors()
	require.Len(t, regs, 2)
	assert.IsType(t, &betaProcessor{}, regs[0].Instance)
	assert.IsType(t, alphaProcessor{}, regs[1].Instance)
}

func TestBuildRegistersLeadingInstances(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a := build(t, NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithProcessor(alphaProcessor{}).
		WithProcessorType(ProcessorType[*betaProcessor]()).
		WithProcessor(&ctxProcessor{}))

	require.Len(t, a.Processors(), 1)

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "ctx"}, calls.processors())
}

func TestRunContainerProcessors(t *testing.T) {
	calls.reset()

	services := taggedServices{"builtin": {&betaProcessor{}, alphaProcessor{}}}
	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a := build(t, NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithContainerProcessors(services, "builtin").
		WithProcessor(&ctxProcessor{}))

	require.Len(t, a.Processors(), 3)

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "alpha", "ctx"}, calls.processors())
}

func TestContainerProcessorsErrors(t *testing.T) {
	_, err := NewBuilder().WithContainerProcessors(nil, "builtin").Build()
	require.Error(t, err)

	_, err = NewBuilder().WithContainerProcessors(taggedServices{}, "builtin").Build()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = NewBuilder().WithContainerProcessors(taggedServices{"builtin": {"not a processor"}}, "builtin").Build()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = NewBuilder().WithContainerProcessors(taggedServices{"builtin": {(*betaProcessor)(nil)}}, "builtin").Build()
	require.Error(t, err)
}

func TestRunAsksResidentSourcesOncePerRun(t *testing.T) {
	calls.reset()

	resident := []module.Module{module.Static("host@v1")}
	loc := &fakeLocator{resident: resident, files: []module.Module{{ID: "plugin@v1", Path: "/plugins/plugin.so"}}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(alphaProcessor{}))

	for run := 1; run <= 2; run++ {
		_, err := a.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, run, loc.residentCalls)
		assert.Equal(t, run, loc.fsCalls)
		assert.Equal(t, resident, loc.lastResident)
	}
}

func TestRunDisabledScans(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{
		resident: []module.Module{module.Static("host@v1", (*betaProcessor)(nil))},
		files:    []module.Module{{ID: "plugin@v1", Path: "/plugins/plugin.so"}},
	}

	opts := testOptions()
	opts.ScanResidentModules = false
	a := build(t, NewBuilder().WithOptions(opts).WithLocator(loc).WithProcessor(alphaProcessor{}))
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, loc.residentCalls)
	assert.Equal(t, []string{"plugin@v1"}, calls.modulesFor("alpha"))

	calls.reset()
	loc.fsCalls = 0
	opts = testOptions()
	opts.ScanFilesystemModules = false
	opts.DiscoverProcessors = false
	a = build(t, NewBuilder().WithOptions(opts).WithLocator(loc).WithProcessor(alphaProcessor{}))
	_, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, loc.fsCalls)
	assert.Equal(t, []string{"host@v1"}, calls.modulesFor("alpha"))
	assert.Empty(t, calls.modulesFor("beta"), "discovery disabled")
	assert.Len(t, a.Processors(), 1)
}

func TestRunRecursiveOption(t *testing.T) {
	loc := &fakeLocator{}
	opts := testOptions()
	opts.ScanRecursively = true
	opts.ScanRoot = "/opt/modules"

	a := build(t, NewBuilder().WithOptions(opts).WithLocator(loc))
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, loc.lastRecursive)
	assert.Equal(t, "/opt/modules", loc.lastRoot)
}

func TestRunSkipsModulesWithoutIdentity(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{
		module.Static(""),
		module.Static("   ", (*betaProcessor)(nil)),
		module.Static("named@v1"),
	}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(alphaProcessor{}))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"named@v1"}, calls.modulesFor("alpha"))
	assert.Equal(t, 1, report.Processors, "exports of unidentified modules are not scanned")
}

func TestRunAccumulatesAcrossRuns(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{module.Static("first@v1", alphaProcessor{})}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc))

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first@v1"}, calls.modulesFor("alpha"))

	loc.resident = append(loc.resident, module.Static("second@v1", (*betaProcessor)(nil)))
	report, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"first@v1", "first@v1", "second@v1"}, calls.modulesFor("alpha"))
	assert.Equal(t, []string{"first@v1", "second@v1"}, calls.modulesFor("beta"))
	assert.Equal(t, 1, report.NewModules)
	assert.Equal(t, 1, report.NewProcessors)
	assert.Equal(t, 4, report.Dispatches)
	assert.Equal(t, 2, a.Runs())
	assert.Equal(t, []string{"first@v1", "second@v1"}, ids(a.Modules()))
}

func TestRunConstructionFailureIsFatal(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{
		module.Static("ok@v1"),
		module.Static("bad@v1", newFailing),
		module.Static("later@v1"),
	}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(alphaProcessor{}))

	report, err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsConstructionError(err))
	assert.Contains(t, err.Error(), "bad@v1")
	assert.Equal(t, StateFailed, a.State())
	assert.Zero(t, calls.len(), "nothing is dispatched")
	assert.Equal(t, 1, report.Modules)
	assert.Equal(t, []string{"ok@v1"}, ids(a.Modules()))
}

func TestRunExportFailureIsFatal(t *testing.T) {
	loc := &fakeLocator{files: []module.Module{{ID: "broken@v1", Path: "/plugins/broken.so", Handle: failingHandle{}}}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc))

	_, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeScan, errors.TypeOf(err))
	assert.Equal(t, StateFailed, a.State())
}

func TestRunFilesystemErrorIsReturned(t *testing.T) {
	walkErr := errors.NewIOError(errors.ErrCodeScanRoot, "walk failed", nil)
	loc := &fakeLocator{fsErr: walkErr}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc))

	_, err := a.Run(context.Background())
	require.ErrorIs(t, err, walkErr)
}

func TestRunCancelled(t *testing.T) {
	calls.reset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(alphaProcessor{}))

	_, err := a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.len())
	assert.Equal(t, StateFailed, a.State())
}

func TestRunCancelledDuringDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	p := &funcProcessor{fn: func(_ context.Context, m module.Module) {
		seen = append(seen, m.ID)
		cancel()
	}}

	loc := &fakeLocator{resident: []module.Module{module.Static("a@v1"), module.Static("b@v1")}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(p))

	report, err := a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a@v1"}, seen)
	assert.Equal(t, 1, report.Dispatches)
}

func TestRunStateDuringDispatch(t *testing.T) {
	var a *Assembler
	var during State
	p := &funcProcessor{fn: func(context.Context, module.Module) { during = a.State() }}

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a = build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(p))
	assert.Equal(t, StateIdle, a.State())

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDispatching, during)
	assert.Equal(t, StateDone, a.State())
}

func TestRunPassesRunIDToProcessors(t *testing.T) {
	var got string
	p := &funcProcessor{fn: func(ctx context.Context, _ module.Module) { got = tracing.RunIDFromContext(ctx) }}

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithProcessor(p))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, got)
}

func TestRunWithContainerFactory(t *testing.T) {
	calls.reset()

	dep := &dependency{name: "store"}
	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1", newDependent, (*injectedProcessor)(nil))}}
	a := build(t, NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithContainer(mapResolver{typeOf[*dependency](): dep}))

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m@v1"}, calls.modulesFor("dependent:store"))
	assert.Equal(t, []string{"m@v1"}, calls.modulesFor("injected:store"))
}

// A scan root holding a well-formed binary and a corrupt one assembles
// the well-formed module only.
func TestRunToleratesUnloadableFiles(t *testing.T) {
	calls.reset()

	root := t.TempDir()
	copyExecutable(t, filepath.Join(root, "good.so"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "corrupt.so"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("docs"), 0o644))

	opener := module.OpenerFunc(func(string) (module.Handle, error) {
		return module.StaticHandle{(*betaProcessor)(nil)}, nil
	})

	opts := testOptions()
	opts.ScanRoot = root
	opts.ScanResidentModules = false
	a := build(t, NewBuilder().
		WithOptions(opts).
		WithLoader(module.NewLoader(opener, nil)).
		WithProcessor(alphaProcessor{}))

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	modules := a.Modules()
	require.Len(t, modules, 1)
	assert.Equal(t, filepath.Join(root, "good.so"), modules[0].Path)
	assert.NotEmpty(t, modules[0].ID)
	assert.Equal(t, 2, report.Processors)
	assert.Len(t, calls.modulesFor("beta"), 1)
}

func TestRunRecursiveFilesystemScan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	copyExecutable(t, filepath.Join(root, "top.so"))
	copyExecutable(t, filepath.Join(root, "nested", "deep.so"))

	var opened []string
	opener := module.OpenerFunc(func(path string) (module.Handle, error) {
		opened = append(opened, filepath.Base(path))
		return module.StaticHandle(nil), nil
	})

	opts := testOptions()
	opts.ScanRoot = root
	opts.ScanResidentModules = false

	a := build(t, NewBuilder().WithOptions(opts).WithLoader(module.NewLoader(opener, nil)))
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"top.so"}, opened)

	// Both copies carry the same embedded identity, so only one module is
	// recorded either way.
	opened = nil
	opts.ScanRecursively = true
	a = build(t, NewBuilder().WithOptions(opts).WithLoader(module.NewLoader(opener, nil)))
	_, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deep.so", "top.so"}, opened)
	assert.Len(t, a.Modules(), 1)
}

func TestRunSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	loc := &fakeLocator{
		resident: []module.Module{module.Static("host@v1", alphaProcessor{})},
		files:    []module.Module{{ID: "plugin@v1", Path: "/plugins/p.so"}},
	}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithTracer(tp.Tracer("test")))

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	names := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = s
	}
	for _, name := range []string{tracing.SpanRun, tracing.SpanResident, tracing.SpanFilesystem, tracing.SpanDiscover, tracing.SpanDispatch} {
		require.Contains(t, names, name)
	}

	run := names[tracing.SpanRun]
	assert.Equal(t, codes.Ok, run.Status().Code)
	assert.Contains(t, run.Attributes(), attribute.String(tracing.AttrRunID, report.RunID))
	assert.Contains(t, run.Attributes(), attribute.Int(tracing.AttrModuleCount, 2))

	dispatch := names[tracing.SpanDispatch]
	assert.Equal(t, run.SpanContext().SpanID(), dispatch.Parent().SpanID())
}

func TestRunFailureSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	loc := &fakeLocator{resident: []module.Module{module.Static("bad@v1", newNil)}}
	a := build(t, NewBuilder().WithOptions(testOptions()).WithLocator(loc).WithTracer(tp.Tracer("test")))

	_, err := a.Run(context.Background())
	require.Error(t, err)

	var run sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == tracing.SpanRun {
			run = s
		}
	}
	require.NotNil(t, run)
	assert.Equal(t, codes.Error, run.Status().Code)
	assert.Contains(t, run.Attributes(), attribute.String(tracing.AttrErrorCode, errors.ErrCodeNilProcessor))
}

func TestBuilderErrors(t *testing.T) {
	_, err := NewBuilder().WithProcessor(nil).Build()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))

	_, err = NewBuilder().WithProcessorType(typeOf[Processor]()).Build()
	require.Error(t, err)

	_, err = NewBuilder().WithProcessorType(typeOf[string]()).Build()
	require.Error(t, err)

	_, err = NewBuilder().Configure(func(o *Options) { o.ScanRoot = "" }).Build()
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestBuilderAssemble(t *testing.T) {
	calls.reset()

	loc := &fakeLocator{resident: []module.Module{module.Static("m@v1")}}
	a, report, err := NewBuilder().
		WithOptions(testOptions()).
		WithLocator(loc).
		WithProcessor(&betaProcessor{}).
		Assemble(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 1, report.Dispatches)
	assert.Equal(t, testOptions().ScanRoot, a.Options().ScanRoot)

	_, _, err = NewBuilder().WithProcessor(nil).Assemble(context.Background())
	require.Error(t, err)
}

func TestBuilderDefaultLocatorUsesResidentSources(t *testing.T) {
	calls.reset()

	opts := testOptions()
	opts.ScanFilesystemModules = false
	a := build(t, NewBuilder().
		WithOptions(opts).
		WithResident(module.ResidentList{module.Static("listed@v1", alphaProcessor{})}))

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"listed@v1"}, calls.modulesFor("alpha"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, errors.ErrCodeScanRoot, errorCode(errors.NewIOError(errors.ErrCodeScanRoot, "x", nil)))
	assert.Empty(t, errorCode(stderrors.New("plain")))
}
