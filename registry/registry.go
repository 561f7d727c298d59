// Package registry maps instrument class names to constructors. The
// registry is an explicit object handed to whoever loads configuration;
// there is no process-wide instance, so two inventories can carry
// different class sets side by side.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/instrctl/comm"
)

// Constructor builds a vendor instrument over a live Communicator. The
// constructed value takes ownership of the Communicator.
type Constructor func(c *comm.Communicator) (any, error)

type Registry struct {
	mu      sync.RWMutex
	classes map[string]Constructor
}

func New() *Registry {
	return &Registry{classes: map[string]Constructor{}}
}

func (r *Registry) Register(class string, build Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[class]; exists {
		return fmt.Errorf("registry: class %q already registered", class)
	}
	r.classes[class] = build
	return nil
}

func (r *Registry) Lookup(class string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	build, ok := r.classes[class]
	return build, ok
}

func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes))
	for class := range r.classes {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Open connects the named class to the instrument at uri. The
// Communicator is closed again if construction fails.
func (r *Registry) Open(class, uri string, opts ...comm.Option) (any, error) {
	build, ok := r.Lookup(class)
	if !ok {
		return nil, fmt.Errorf("registry: unknown class %q", class)
	}
	c, err := comm.OpenURI(uri, opts...)
	if err != nil {
		return nil, err
	}
	inst, err := build(c)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("registry: building %q: %w", class, err)
	}
	return inst, nil
}
