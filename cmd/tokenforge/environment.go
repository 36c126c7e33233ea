package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/tokenforge/internal/build"
	"git.home.luguber.info/inful/tokenforge/internal/cache"
	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/deps"
	"git.home.luguber.info/inful/tokenforge/internal/eventstore"
	"git.home.luguber.info/inful/tokenforge/internal/format"
	"git.home.luguber.info/inful/tokenforge/internal/metrics"
	"git.home.luguber.info/inful/tokenforge/internal/notify"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/source"
	"git.home.luguber.info/inful/tokenforge/internal/transform"
	"git.home.luguber.info/inful/tokenforge/internal/watch"
)

// newCaches builds the session-lifetime cache instances. On configuration
// reload the watch orchestrator hands these same instances to the new
// environment, so the diff strategy and cache directory are fixed for the
// session.
func newCaches(cfg *config.Config) (watch.Caches, error) {
	registry := deps.DefaultRegistry()
	strategy, err := registry.New(cfg.Dependencies.Strategy.Name, cfg.Dependencies.Strategy.Options)
	if err != nil {
		return watch.Caches{}, fmt.Errorf("invalid diff strategy: %w", err)
	}

	cacheDir := cfg.Dependencies.CacheDir
	depCache := cache.NewDependencyCache(filepath.Join(cacheDir, "dependencies.json"), strategy)
	docCache, err := cache.NewDocumentCache(filepath.Join(cacheDir, "documents"))
	if err != nil {
		return watch.Caches{}, err
	}

	return watch.Caches{Dependencies: depCache, Documents: docCache}, nil
}

// newEnvironment wires one runtime environment from a loaded configuration.
// It is the environment factory the watch orchestrator calls on start and on
// every configuration reload.
func newEnvironment(cfg *config.Config, caches watch.Caches) (*watch.Environment, error) {
	var closers []func() error

	bus := pipeline.NewBus()
	if cfg.Events.StorePath != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Events.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %w", err)
		}
		bus = pipeline.NewBusWithEventStore(store)
		closers = append(closers, store.Close)
	}

	if cfg.Events.NATS.Enabled {
		pub, err := notify.NewNATSPublisher(cfg.Events.NATS.URL, cfg.Events.NATS.Subject)
		if err != nil {
			slog.Warn("NATS publisher disabled", "error", err)
		} else {
			pub.Attach(bus)
			closers = append(closers, pub.Close)
		}
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(nil)
	}

	transformRegistry := transform.NewRegistry()
	if len(cfg.Transforms) > 0 {
		if err := transform.RegisterNamed(transformRegistry, cfg.Transforms); err != nil {
			return nil, err
		}
	} else if err := transform.RegisterBuiltins(transformRegistry); err != nil {
		return nil, err
	}

	formatRegistry := format.NewRegistry()
	if len(cfg.Formatters) > 0 {
		if err := format.RegisterNamed(formatRegistry, cfg.Formatters); err != nil {
			return nil, err
		}
	} else if err := format.RegisterBuiltins(formatRegistry); err != nil {
		return nil, err
	}

	runner, err := build.NewRunner(build.Options{
		Config:     cfg,
		Planner:    source.NewPlanner(),
		Parser:     source.NewReader(caches.Documents),
		Tracker:    deps.NewTrackingService(caches.Dependencies, bus),
		Transforms: transform.NewEngine(transformRegistry),
		Formatters: format.NewEngine(formatRegistry),
		Writer:     newFSWriter(cfg.Output.Directory, cfg.Output.Clean),
		Bus:        bus,
		Recorder:   recorder,
	})
	if err != nil {
		return nil, err
	}

	return watch.NewEnvironment(cfg, runner, func() error {
		var firstErr error
		for _, closeFn := range closers {
			if err := closeFn(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}), nil
}
