package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages named provider records.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Register creates and stores a record from config.
// Registering a duplicate name is a configuration error.
func (r *Registry) Register(cfg Config) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[cfg.Name]; ok {
		return nil, fmt.Errorf("provider %q already registered", cfg.Name)
	}
	rec := NewRecord(cfg)
	r.records[cfg.Name] = rec
	return rec, nil
}

// Get returns a record by name.
func (r *Registry) Get(name string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec, ok
}

// Names returns sorted names of all registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Primary returns the record with RolePrimary.
func (r *Registry) Primary() (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Role() == RolePrimary {
			return rec, true
		}
	}
	return nil, false
}

// Fallbacks returns all fallback records in name order.
func (r *Registry) Fallbacks() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Role() == RoleFallback {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// All returns all records in name order.
func (r *Registry) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
