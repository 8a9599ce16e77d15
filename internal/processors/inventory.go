// Package processors holds the processors assemble registers itself, before
// any module is scanned.
package processors

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/assemble/internal/module"
)

// Source says where a module came from.
type Source string

const (
	SourceResident Source = "resident"
	SourceFile     Source = "file"
)

// Entry is one module seen by an Inventory.
type Entry struct {
	ID         string    `json:"id" yaml:"id"`
	Path       string    `json:"path,omitempty" yaml:"path,omitempty"`
	Source     Source    `json:"source" yaml:"source"`
	FirstSeen  time.Time `json:"first_seen" yaml:"first_seen"`
	Dispatches int       `json:"dispatches" yaml:"dispatches"`
}

// Event is sent to watchers for every module an Inventory receives.
type Event struct {
	Type      EventType
	Entry     Entry
	Timestamp time.Time
}

// EventType tells a first sighting from a repeat dispatch.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeRedispatched
)

// String implements fmt.Stringer.
func (t EventType) String() string {
	if t == EventTypeAdded {
		return "added"
	}
	return "redispatched"
}

// Inventory records every module dispatched to it.
type Inventory struct {
	entries  map[string]*Entry
	order    []string
	mutex    sync.RWMutex
	watchers []chan Event
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		entries:  make(map[string]*Entry),
		watchers: make([]chan Event, 0),
	}
}

// Process implements assembler.Processor.
func (inv *Inventory) Process(_ context.Context, m module.Module) {
	inv.mutex.Lock()
	defer inv.mutex.Unlock()

	key := m.CanonicalID()
	eventType := EventTypeRedispatched

	entry, exists := inv.entries[key]
	if !exists {
		eventType = EventTypeAdded
		source := SourceResident
		if m.Path != "" {
			source = SourceFile
		}
		entry = &Entry{ID: m.ID, Path: m.Path, Source: source, FirstSeen: time.Now()}
		inv.entries[key] = entry
		inv.order = append(inv.order, key)
	}
	entry.Dispatches++

	event := Event{
		Type:      eventType,
		Entry:     *entry,
		Timestamp: time.Now(),
	}

	for _, watcher := range inv.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Snapshot returns the entries in the order they were first seen.
func (inv *Inventory) Snapshot() []Entry {
	inv.mutex.RLock()
	defer inv.mutex.RUnlock()

	out := make([]Entry, 0, len(inv.order))
	for _, key := range inv.order {
		out = append(out, *inv.entries[key])
	}
	return out
}

// Sorted returns the entries ordered by identity.
func (inv *Inventory) Sorted() []Entry {
	out := inv.Snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get looks an entry up by identity, case-insensitively.
func (inv *Inventory) Get(id string) (Entry, bool) {
	inv.mutex.RLock()
	defer inv.mutex.RUnlock()

	entry, exists := inv.entries[module.Canonical(id)]
	if !exists {
		return Entry{}, false
	}
	return *entry, true
}

// Count returns the number of distinct modules seen.
func (inv *Inventory) Count() int {
	inv.mutex.RLock()
	defer inv.mutex.RUnlock()

	return len(inv.entries)
}

// Watch returns a channel that receives an Event per Process call.
func (inv *Inventory) Watch() <-chan Event {
	inv.mutex.Lock()
	defer inv.mutex.Unlock()

	ch := make(chan Event, 100)
	inv.watchers = append(inv.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (inv *Inventory) UnWatch(ch <-chan Event) {
	inv.mutex.Lock()
	defer inv.mutex.Unlock()

	for i, watcher := range inv.watchers {
		if watcher == ch {
			close(watcher)
			inv.watchers = append(inv.watchers[:i], inv.watchers[i+1:]...)
			break
		}
	}
}
