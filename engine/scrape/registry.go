package scrape

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dealradar/dealradar/engine/catalog"
)

// Constructor builds a fresh adapter instance for one run.
type Constructor func() Adapter

// Registry maps store identifiers to adapter constructors. Registration
// is static: the full set is wired at startup and resolving an unknown
// identifier is a configuration error, never a silent skip.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a store constructor. Identifiers are case-insensitive.
func (r *Registry) Register(store string, c Constructor) {
	r.constructors[strings.ToLower(store)] = c
}

// Resolve returns a new adapter for the store identifier.
func (r *Registry) Resolve(store string) (Adapter, error) {
	c, ok := r.constructors[strings.ToLower(store)]
	if !ok {
		return nil, &catalog.ConfigError{
			Option: "store",
			Reason: fmt.Sprintf("%q is not registered (available: %s)", store, strings.Join(r.Stores(), ", ")),
		}
	}
	return c(), nil
}

// Stores returns the registered identifiers, sorted.
func (r *Registry) Stores() []string {
	out := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
