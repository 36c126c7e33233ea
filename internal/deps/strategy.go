package deps

import (
	"fmt"
	"sort"
	"sync"
)

// Strategy compares a new snapshot against the previous one and produces
// the changed/removed pointer sets. prev is nil on the first build.
type Strategy interface {
	Name() string
	Diff(prev, next *Snapshot) (*Diff, error)
}

// StrategyFactory builds a strategy from configuration options. Factories
// must validate options strictly and fail fast on anything unexpected.
type StrategyFactory func(options map[string]any) (Strategy, error)

// OptionError reports a malformed strategy option. It fails configuration,
// never silently defaults.
type OptionError struct {
	Strategy string
	Option   string
	Reason   string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %q for strategy %q: %s", e.Option, e.Strategy, e.Reason)
}

// StrategyRegistry resolves strategy names to factories. Registering the
// same name twice is a programming error and fails immediately.
type StrategyRegistry struct {
	mu        sync.RWMutex
	factories map[string]StrategyFactory
}

// NewStrategyRegistry creates an empty registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{factories: make(map[string]StrategyFactory)}
}

// Register adds a strategy factory under a name.
func (r *StrategyRegistry) Register(name string, factory StrategyFactory) error {
	if name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for strategy %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// New resolves a strategy by name and constructs it with the given options.
// Unknown names fail with the list of registered strategies.
func (r *StrategyRegistry) New(name string, options map[string]any) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown diff strategy %q (registered: %v)", name, r.Names())
	}
	return factory(options)
}

// Names returns the registered strategy names, sorted.
func (r *StrategyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *StrategyRegistry {
	r := NewStrategyRegistry()
	// Built-in registrations cannot collide.
	_ = r.Register(StrategySnapshot, newSnapshotStrategy)
	_ = r.Register(StrategyGraph, newGraphStrategy)
	return r
}

// rejectUnknownOptions fails on option keys the strategy does not declare.
func rejectUnknownOptions(strategy string, options map[string]any, known ...string) error {
	for key := range options {
		found := false
		for _, k := range known {
			if key == k {
				found = true
				break
			}
		}
		if !found {
			return &OptionError{Strategy: strategy, Option: key, Reason: "unknown option"}
		}
	}
	return nil
}
