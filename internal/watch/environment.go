package watch

import (
	"sync"

	"git.home.luguber.info/inful/tokenforge/internal/build"
	"git.home.luguber.info/inful/tokenforge/internal/cache"
	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/deps"
)

// Caches bundles the cache instances shared across the lifetime of a watch
// session. On configuration reload they are handed forward to the new
// environment unchanged, so a config edit never forces a full re-parse of
// unchanged sources. They are torn down only on final Close.
type Caches struct {
	Dependencies deps.SnapshotCache
	Documents    *cache.DocumentCache
}

// Environment is one fully wired runtime built from a loaded configuration.
// A watch session replaces its environment on configuration change and
// disposes the old one exactly once.
type Environment struct {
	Config *config.Config
	Runner *build.Runner

	closeFn   func() error
	closeOnce sync.Once
	closeErr  error
}

// NewEnvironment wraps a runner and its teardown hook. closeFn may be nil.
func NewEnvironment(cfg *config.Config, runner *build.Runner, closeFn func() error) *Environment {
	return &Environment{Config: cfg, Runner: runner, closeFn: closeFn}
}

// Close disposes the environment. Subsequent calls return the first result.
func (e *Environment) Close() error {
	e.closeOnce.Do(func() {
		if e.closeFn != nil {
			e.closeErr = e.closeFn()
		}
	})
	return e.closeErr
}

// EnvironmentFactory builds a runtime environment from a loaded
// configuration, reusing the supplied cache instances.
type EnvironmentFactory func(cfg *config.Config, caches Caches) (*Environment, error)
