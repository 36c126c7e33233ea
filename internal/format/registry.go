package format

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages formatter definitions. Registering the same name twice
// fails immediately rather than overwriting.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]*Definition)}
}

// Register adds a definition to the registry.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("cannot register nil formatter")
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid formatter definition: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.Name]; exists {
		return fmt.Errorf("formatter %q already registered", def.Name)
	}
	r.definitions[def.Name] = def
	return nil
}

// Get retrieves a definition by name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[name]
	if !ok {
		return nil, fmt.Errorf("formatter %q not found", name)
	}
	return def, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
