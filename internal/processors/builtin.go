package processors

import (
	"fmt"
	"sort"

	"github.com/conneroisu/assemble/internal/assembler"
	"github.com/conneroisu/assemble/internal/logging"
)

// Builtin processor names accepted by New.
const (
	NameInventory = "inventory"
	NameLog       = "log"
)

// Set is the host's builtin processors, created once per command.
type Set struct {
	Inventory *Inventory
	logger    logging.Logger
}

// NewSet creates a set whose log processor writes to logger.
func NewSet(logger logging.Logger) *Set {
	return &Set{Inventory: NewInventory(), logger: logger}
}

// Names returns every builtin processor name, sorted.
func Names() []string {
	names := []string{NameInventory, NameLog}
	sort.Strings(names)
	return names
}

// Lookup returns the processors named, in order, without duplicates. The
// inventory is always the set's own.
func (s *Set) Lookup(names []string) ([]assembler.Processor, error) {
	seen := make(map[string]bool, len(names))
	var out []assembler.Processor

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case NameInventory:
			out = append(out, s.Inventory)
		case NameLog:
			out = append(out, NewLog(s.logger))
		default:
			return nil, fmt.Errorf("unknown builtin processor %q (available: %v)", name, Names())
		}
	}
	return out, nil
}
