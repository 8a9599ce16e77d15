// Package assembler discovers processors in modules and feeds every
// discovered module to every processor exactly once.
//
// An Assembler walks the resident modules and the module binaries under a
// scan root, records each module once by canonical identity, instantiates
// the Processor types the modules export, and then dispatches. Runs
// accumulate: a later Run reuses everything earlier runs discovered.
package assembler

import (
	"context"
	"reflect"

	"github.com/conneroisu/assemble/internal/module"
)

// Processor receives every discovered module.
//
// Implementations are instantiated at most once per concrete type, no
// matter how many modules export that type.
type Processor interface {
	Process(ctx context.Context, m module.Module)
}

var processorInterface = reflect.TypeOf((*Processor)(nil)).Elem()

// ProcessorType returns the reflect.Type of T for use with
// Builder.WithProcessorType.
func ProcessorType[T Processor]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Registration is a processor instance keyed by its concrete type.
type Registration struct {
	Type     reflect.Type `json:"-" yaml:"-"`
	Instance Processor    `json:"-" yaml:"-"`
	// Module is the identity of the module the type was found in, empty
	// for processors supplied up front.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`
}

// TypeName returns the processor type as written in Go, e.g. "*audit.Recorder".
func (r Registration) TypeName() string {
	if r.Type == nil {
		return ""
	}
	return r.Type.String()
}

// isProcessorType reports whether t is a concrete type implementing Processor.
func isProcessorType(t reflect.Type) bool {
	return t != nil && t.Kind() != reflect.Interface && t.Implements(processorInterface)
}
