package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Provider fetches normalized metadata from one external catalog.
type Provider interface {
	Name() string
	// Fetch resolves an id query. Misses return an error wrapping
	// services.ErrNotFound.
	Fetch(ctx context.Context, q Query) (*Record, error)
	// Search returns name matches in the provider's own ranking order.
	Search(ctx context.Context, q Query) ([]Record, error)
}

// Registry holds providers keyed by lower-case name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry indexes the supplied providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(p.Name()))
		if key == "" {
			return nil, fmt.Errorf("provider has empty name")
		}
		if _, exists := r.providers[key]; exists {
			return nil, fmt.Errorf("duplicate provider %q", key)
		}
		r.providers[key] = p
	}
	return r, nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
