package assembler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/conneroisu/assemble/internal/module"
)

// calls records every Process call made by the fixture processors below.
var calls = &callLog{}

type callLog struct {
	mu      sync.Mutex
	entries []call
}

type call struct {
	processor string
	module    string
}

func (c *callLog) add(processor string, m module.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, call{processor: processor, module: m.ID})
}

func (c *callLog) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

func (c *callLog) modulesFor(processor string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.entries {
		if e.processor == processor {
			out = append(out, e.module)
		}
	}
	return out
}

// processors lists the processor of every call, in call order.
func (c *callLog) processors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.processor)
	}
	return out
}

func (c *callLog) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// alphaProcessor implements Processor with a value receiver.
type alphaProcessor struct{}

func (alphaProcessor) Process(_ context.Context, m module.Module) { calls.add("alpha", m) }

// betaProcessor implements Processor with a pointer receiver.
type betaProcessor struct{}

func (*betaProcessor) Process(_ context.Context, m module.Module) { calls.add("beta", m) }

var gammaCreated atomic.Int32

// gammaProcessor is exported through its constructor.
type gammaProcessor struct {
	greeting string
}

func newGamma() *gammaProcessor {
	gammaCreated.Add(1)
	return &gammaProcessor{greeting: "hi"}
}

func (g *gammaProcessor) Process(_ context.Context, m module.Module) { calls.add("gamma", m) }

type dependency struct {
	name string
}

type dependentProcessor struct {
	dep *dependency
}

func newDependent(dep *dependency) *dependentProcessor {
	return &dependentProcessor{dep: dep}
}

func (d *dependentProcessor) Process(_ context.Context, m module.Module) {
	calls.add("dependent:"+d.dep.name, m)
}

type ctxProcessor struct{}

func newCtxProcessor(ctx context.Context) (*ctxProcessor, error) {
	if ctx == nil {
		return nil, errors.New("no context")
	}
	return &ctxProcessor{}, nil
}

func (c *ctxProcessor) Process(_ context.Context, m module.Module) { calls.add("ctx", m) }

type failingProcessor struct{}

func newFailing() (*failingProcessor, error) {
	return nil, errors.New("cannot start")
}

func (*failingProcessor) Process(context.Context, module.Module) {}

type nilProcessor struct{}

func newNil() *nilProcessor { return nil }

func (*nilProcessor) Process(context.Context, module.Module) {}

type panickingProcessor struct{}

func newPanicking() *panickingProcessor { panic("constructor exploded") }

func (*panickingProcessor) Process(context.Context, module.Module) {}

type injectedProcessor struct {
	Dep      *dependency `assemble:"inject"`
	Optional *missing    `assemble:"inject,optional"`
	Plain    string
}

type missing struct{}

func (p *injectedProcessor) Process(_ context.Context, m module.Module) {
	calls.add("injected:"+p.Dep.name, m)
}

type unexportedInject struct {
	dep *dependency `assemble:"inject"`
}

func (*unexportedInject) Process(context.Context, module.Module) {}

// funcProcessor is supplied up front by tests that need a closure.
type funcProcessor struct {
	fn func(ctx context.Context, m module.Module)
}

func (f *funcProcessor) Process(ctx context.Context, m module.Module) { f.fn(ctx, m) }

// fakeLocator serves fixed module lists.
type fakeLocator struct {
	resident []module.Module
	files    []module.Module
	fsErr    error

	residentCalls int
	fsCalls       int
	lastRoot      string
	lastRecursive bool
	lastResident  []module.Module
}

func (f *fakeLocator) Resident(context.Context) ([]module.Module, error) {
	f.residentCalls++
	return f.resident, nil
}

func (f *fakeLocator) Filesystem(_ context.Context, root string, recursive bool, resident []module.Module, yield func(module.Module) error) error {
	f.fsCalls++
	f.lastRoot = root
	f.lastRecursive = recursive
	f.lastResident = resident
	for _, m := range f.files {
		if err := yield(m); err != nil {
			return err
		}
	}
	return f.fsErr
}

// failingHandle fails to enumerate exports.
type failingHandle struct{}

func (failingHandle) Exports() ([]any, error) { return nil, errors.New("symbol table corrupt") }

func testOptions() Options {
	opts := DefaultOptions()
	opts.ScanRoot = "/plugins"
	opts.ScanRecursively = false
	return opts
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// taggedServices is a TaggedResolver over a fixed map.
type taggedServices map[string][]interface{}

func (s taggedServices) GetByTag(tag string) ([]interface{}, error) {
	services, ok := s[tag]
	if !ok {
		return nil, errors.New("no services tagged " + tag)
	}
	return services, nil
}
