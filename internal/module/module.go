// Package module models loadable units of code and finds them.
//
// A Module is an identity plus a Handle through which its exports can be
// enumerated. Modules come from two places: the host, which declares the
// modules already resident in the process, and the filesystem, where module
// binaries (Go plugins) are located and loaded by a Loader. Go cannot list the
// types of a loaded binary, so every module publishes them explicitly via an
// Exports entry point.
package module

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ExportsSymbol is the symbol a module binary exports to publish its types.
// The symbol must be a func() []any.
const ExportsSymbol = "Exports"

// Handle is an opaque reference to loaded code.
type Handle interface {
	// Exports returns the values the module publishes: typed sample values
	// such as (*T)(nil) or T{}, or constructor functions returning a type.
	Exports() ([]any, error)
}

// Module is a loaded unit of code. Modules are immutable once created and
// are never unloaded.
type Module struct {
	// ID is the raw identity, e.g. "example.com/plugins/audit@v1.2.0".
	ID string `json:"id" yaml:"id"`
	// Path is the file the module was loaded from, empty for modules the
	// host declared as resident without a backing file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Handle enumerates the module's exports.
	Handle Handle `json:"-" yaml:"-"`
}

// CanonicalID returns the case-folded identifier used for deduplication.
func (m Module) CanonicalID() string {
	return Canonical(m.ID)
}

// Exports enumerates the module's exports. A module without a handle has none.
func (m Module) Exports() ([]any, error) {
	if m.Handle == nil {
		return nil, nil
	}
	return m.Handle.Exports()
}

// String implements fmt.Stringer.
func (m Module) String() string {
	if m.Path == "" {
		return m.ID
	}
	return fmt.Sprintf("%s (%s)", m.ID, m.Path)
}

// Canonical folds an identity for case-insensitive comparison. An empty
// result means the identity cannot be tracked.
func Canonical(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	// cases.Caser is stateful, so each call gets its own.
	return cases.Fold().String(id)
}

// StaticHandle is a Handle over a fixed export list.
type StaticHandle []any

// Exports returns a copy of the export list.
func (h StaticHandle) Exports() ([]any, error) {
	out := make([]any, len(h))
	copy(out, h)
	return out, nil
}

// Static declares a module linked into the host binary.
func Static(id string, exports ...any) Module {
	return Module{
		ID:     id,
		Handle: StaticHandle(exports),
	}
}
