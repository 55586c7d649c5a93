package platform

import (
	"fmt"
	"sort"
	"sync"
)

// Info describes a registered platform.
type Info struct {
	ID       string
	Name     string
	LoginURL string
	// Hidden platforms are usable but left out of user-facing listings.
	Hidden bool
}

// Factory builds a fresh adapter. Adapters hold per-account state, so every
// account session gets its own instance.
type Factory func() Platform

type entry struct {
	info    Info
	factory Factory
}

// Registry maps platform ids to adapter factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a platform. Registering the same id twice is an error.
func (r *Registry) Register(info Info, factory Factory) error {
	if info.ID == "" {
		return fmt.Errorf("platform id cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("platform %q: factory cannot be nil", info.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[info.ID]; exists {
		return fmt.Errorf("platform %q already registered", info.ID)
	}
	r.entries[info.ID] = entry{info: info, factory: factory}
	return nil
}

// New creates an adapter for id.
func (r *Registry) New(id string) (Platform, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown platform %q", id)
	}
	return e.factory(), nil
}

// Lookup returns the metadata for id.
func (r *Registry) Lookup(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e.info, ok
}

// List returns visible platforms sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		if e.info.Hidden {
			continue
		}
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
