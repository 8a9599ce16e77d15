package assembler

import (
	"context"
	"reflect"

	"github.com/conneroisu/assemble/internal/errors"
	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
)

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// Candidate is a processor type found in a module.
type Candidate struct {
	// Type is the concrete processor type.
	Type reflect.Type
	// Constructor builds Type when valid. It returns Type, optionally
	// followed by an error.
	Constructor reflect.Value
	// Module is the module the type was exported by.
	Module module.Module
}

// TypeName returns the candidate type as written in Go.
func (c Candidate) TypeName() string {
	if c.Type == nil {
		return ""
	}
	return c.Type.String()
}

// Scanner finds processor types among a module's exports.
type Scanner struct {
	logger logging.Logger
}

// NewScanner creates a scanner.
func NewScanner(logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scanner{logger: logger.WithComponent("scanner")}
}

// Scan returns the processor candidates m exports, in export order, one per
// concrete type. Exports that are not processors are ignored.
//
// An export is a candidate when it is
//   - a value whose type implements Processor,
//   - a value whose pointer type implements Processor (the pointer type is used), or
//   - a function returning a concrete Processor type, optionally with an error.
func (s *Scanner) Scan(ctx context.Context, m module.Module) ([]Candidate, error) {
	exports, err := m.Exports()
	if err != nil {
		return nil, errors.NewScanError(errors.ErrCodeExportsFailed,
			"cannot enumerate module exports", err).
			WithModule(m.ID).
			WithPath(m.Path)
	}

	seen := make(map[reflect.Type]struct{}, len(exports))
	var candidates []Candidate

	for _, export := range exports {
		c, ok := candidateFor(export)
		if !ok {
			continue
		}
		if _, dup := seen[c.Type]; dup {
			continue
		}
		seen[c.Type] = struct{}{}
		c.Module = m
		candidates = append(candidates, c)

		s.logger.Debug(ctx, "Processor candidate found",
			"module", m.ID,
			"processor", c.TypeName(),
			"constructor", c.Constructor.IsValid())
	}

	return candidates, nil
}

func candidateFor(export any) (Candidate, bool) {
	if export == nil {
		return Candidate{}, false
	}

	v := reflect.ValueOf(export)
	t := v.Type()

	if t.Kind() == reflect.Func {
		out, ok := constructorResult(t)
		if !ok {
			return Candidate{}, false
		}
		if v.IsNil() {
			return Candidate{}, false
		}
		return Candidate{Type: out, Constructor: v}, true
	}

	if isProcessorType(t) {
		return Candidate{Type: t}, true
	}
	if t.Kind() != reflect.Pointer {
		if pt := reflect.PointerTo(t); isProcessorType(pt) {
			return Candidate{Type: pt}, true
		}
	}

	return Candidate{}, false
}

// constructorResult returns the processor type built by a constructor of
// type t: func(...) T or func(...) (T, error).
func constructorResult(t reflect.Type) (reflect.Type, bool) {
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorInterface {
			return nil, false
		}
	default:
		return nil, false
	}

	out := t.Out(0)
	if !isProcessorType(out) {
		return nil, false
	}
	return out, true
}
