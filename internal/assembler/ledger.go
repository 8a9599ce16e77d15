package assembler

import (
	"reflect"

	"github.com/conneroisu/assemble/internal/module"
)

// Ledger records the modules discovered so far, keyed by canonical
// identity, and the processors instantiated so far, keyed by concrete type.
// Both sets keep insertion order and reject duplicates.
//
// A Ledger is not safe for concurrent mutation.
type Ledger struct {
	modules []module.Module
	ids     map[string]struct{}

	processors []Registration
	types      map[reflect.Type]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		ids:   make(map[string]struct{}),
		types: make(map[reflect.Type]struct{}),
	}
}

// AddModule records m. It returns false if m has no identity or a module
// with the same canonical identity is already recorded.
func (l *Ledger) AddModule(m module.Module) bool {
	id := m.CanonicalID()
	if id == "" {
		return false
	}
	if _, ok := l.ids[id]; ok {
		return false
	}
	l.ids[id] = struct{}{}
	l.modules = append(l.modules, m)
	return true
}

// Contains reports whether a module with identity id is recorded.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.ids[module.Canonical(id)]
	return ok
}

// AddProcessor records r. It returns false if r has no instance or its
// type is already recorded. A missing Type is taken from the instance.
func (l *Ledger) AddProcessor(r Registration) bool {
	if r.Instance == nil {
		return false
	}
	if r.Type == nil {
		r.Type = reflect.TypeOf(r.Instance)
	}
	if _, ok := l.types[r.Type]; ok {
		return false
	}
	l.types[r.Type] = struct{}{}
	l.processors = append(l.processors, r)
	return true
}

// HasProcessor reports whether a processor of type t is recorded.
func (l *Ledger) HasProcessor(t reflect.Type) bool {
	_, ok := l.types[t]
	return ok
}

// Modules returns the recorded modules in discovery order.
func (l *Ledger) Modules() []module.Module {
	out := make([]module.Module, len(l.modules))
	copy(out, l.modules)
	return out
}

// Processors returns the recorded processors in registration order.
func (l *Ledger) Processors() []Registration {
	out := make([]Registration, len(l.processors))
	copy(out, l.processors)
	return out
}

// Len returns the number of recorded modules.
func (l *Ledger) Len() int {
	return len(l.modules)
}

// ProcessorCount returns the number of recorded processors.
func (l *Ledger) ProcessorCount() int {
	return len(l.processors)
}
