package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/scheduler"
)

// State describes the orchestrator lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
	StateBuilding State = "building"
	StateClosing  State = "closing"
	StateClosed   State = "closed"
)

// configKey is the debounce key reserved for configuration file changes.
const configKey = "\x00config"

// CloseError aggregates teardown failures. Close never returns on the first
// failure; every subscription gets its chance to shut down.
type CloseError struct {
	Errs []error
}

func (e *CloseError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("watch teardown: %d error(s): %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *CloseError) Unwrap() []error { return e.Errs }

// Options configures a watch session.
type Options struct {
	ConfigPath string
	Factory    EnvironmentFactory
	Watcher    Watcher
	Reporter   pipeline.Reporter
	Caches     Caches
	Logger     *slog.Logger
}

// Orchestrator owns a watch session: it builds the runtime environment from
// configuration, watches the configuration file and every declared source,
// serializes rebuilds through a sequential scheduler, and rebuilds the
// environment on configuration change while reusing the session's caches.
//
// A failed rebuild never stops the session; the next event is processed
// normally.
type Orchestrator struct {
	configPath string
	factory    EnvironmentFactory
	watcher    Watcher
	reporter   pipeline.Reporter
	caches     Caches
	logger     *slog.Logger

	sched     *scheduler.Sequential[pipeline.BuildSummary]
	debouncer *Debouncer

	mu    sync.Mutex
	state State
	env   *Environment
	subs  []Subscription
	cron  gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewOrchestrator creates a watch orchestrator. Start must be called before
// any events are processed.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("environment factory is required")
	}
	if opts.Watcher == nil {
		return nil, fmt.Errorf("watcher is required")
	}
	if opts.Reporter == nil {
		return nil, fmt.Errorf("reporter is required")
	}

	o := &Orchestrator{
		configPath: opts.ConfigPath,
		factory:    opts.Factory,
		watcher:    opts.Watcher,
		reporter:   opts.Reporter,
		caches:     opts.Caches,
		logger:     opts.Logger,
		state:      StateIdle,
		sched:      scheduler.NewSequential[pipeline.BuildSummary](),
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start resolves the configuration, builds the initial environment,
// registers watchers, and runs the initial build. It returns once the
// initial build has completed; the session then keeps running until Close.
func (o *Orchestrator) Start(ctx context.Context) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	env, err := o.factory(cfg, o.caches)
	if err != nil {
		return fmt.Errorf("failed to build environment: %w", err)
	}

	o.mu.Lock()
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.env = env
	o.state = StateWatching
	o.mu.Unlock()

	o.debouncer = NewDebouncer(cfg.Watch.Debounce, o.onFlush)

	if err := o.registerWatchers(cfg); err != nil {
		return err
	}
	if err := o.startPeriodicRebuild(cfg.Watch.RebuildInterval); err != nil {
		return err
	}

	o.logger.Info("Watch session started", logfields.Path(o.configPath))
	o.runBuild("initial build", false)
	return nil
}

// registerWatchers opens one subscription for the configuration file and
// one per declared source pattern directory. New subscriptions are opened
// before the old set is closed: if any open fails, the partial new set is
// discarded and the prior subscriptions stay registered, so a reload whose
// re-registration fails leaves the session listening (and able to retry on
// the next configuration event) instead of deaf.
func (o *Orchestrator) registerWatchers(cfg *config.Config) error {
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()

	requests := []Request{{ID: configKey, Path: o.configPath}}
	seen := map[string]struct{}{}
	for _, src := range cfg.Sources {
		for _, pattern := range src.Patterns {
			dir := globBase(pattern)
			if _, dup := seen[dir]; dup {
				continue
			}
			seen[dir] = struct{}{}
			requests = append(requests, Request{ID: "source:" + src.Name, Path: dir})
		}
	}

	var subs []Subscription
	for _, req := range requests {
		sub, err := o.watcher.Watch(ctx, req, Hooks{
			OnEvent: o.onEvent,
			OnError: o.reporter.WatcherWarning,
		})
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return fmt.Errorf("failed to watch %s: %w", req.Path, err)
		}
		subs = append(subs, sub)
	}

	o.mu.Lock()
	old := o.subs
	o.subs = subs
	o.mu.Unlock()

	for _, sub := range old {
		if err := sub.Close(); err != nil {
			o.reporter.WatcherWarning(fmt.Errorf("failed to close watch subscription: %w", err))
		}
	}
	return nil
}

func (o *Orchestrator) startPeriodicRebuild(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create periodic rebuild scheduler: %w", err)
	}
	_, err = cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { o.runBuildAsync("scheduled full rebuild", true) }),
		gocron.WithName("periodic-full-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule periodic rebuild: %w", err)
	}
	cron.Start()

	o.mu.Lock()
	o.cron = cron
	o.mu.Unlock()
	return nil
}

// onEvent routes watch events into the debouncer. Configuration changes
// share one reserved key so a burst of edits yields one reload.
func (o *Orchestrator) onEvent(ev Event) {
	if ev.RequestID == configKey {
		o.debouncer.Trigger(configKey)
		return
	}
	o.debouncer.Trigger(ev.Path)
}

func (o *Orchestrator) onFlush(key string) {
	if key == configKey {
		o.runReloadAsync()
		return
	}
	o.runBuildAsync("source change: "+key, false)
}

// runBuildAsync schedules a build without blocking the caller's goroutine.
// Overlapping triggers queue behind the running build in FIFO order.
func (o *Orchestrator) runBuildAsync(reason string, full bool) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runBuild(reason, full)
	}()
}

func (o *Orchestrator) runBuild(reason string, full bool) {
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	task := scheduler.Task[pipeline.BuildSummary]{
		ID: reason,
		Run: func(taskCtx context.Context) (pipeline.BuildSummary, error) {
			env := o.currentEnv()
			if env == nil {
				return pipeline.BuildSummary{}, fmt.Errorf("no active environment")
			}
			o.setState(StateBuilding)
			defer o.setState(StateWatching)
			return env.Runner.Run(taskCtx, reason, full)
		},
	}

	result, err := o.sched.Schedule(ctx, task)
	if err != nil {
		o.reporter.BuildFailed(reason, err)
		return
	}
	o.reporter.BuildSucceeded(result.Value)
}

// runReloadAsync schedules a configuration reload through the sequential
// scheduler so it never races an in-flight build. The new environment is
// built from the freshly loaded configuration but reuses the session's
// cache instances; the prior environment is disposed exactly once.
func (o *Orchestrator) runReloadAsync() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		o.mu.Lock()
		ctx := o.ctx
		o.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}

		const reason = "configuration update"
		task := scheduler.Task[pipeline.BuildSummary]{
			ID: reason,
			Run: func(taskCtx context.Context) (pipeline.BuildSummary, error) {
				if err := o.reload(); err != nil {
					return pipeline.BuildSummary{}, err
				}
				env := o.currentEnv()
				if env == nil {
					return pipeline.BuildSummary{}, fmt.Errorf("no active environment")
				}
				o.setState(StateBuilding)
				defer o.setState(StateWatching)
				return env.Runner.Run(taskCtx, reason, false)
			},
		}

		result, err := o.sched.Schedule(ctx, task)
		if err != nil {
			o.reporter.BuildFailed(reason, err)
			return
		}
		o.reporter.BuildSucceeded(result.Value)
	}()
}

// reload swaps the environment under a freshly loaded configuration. The
// new environment is constructed before the old one is disposed so a broken
// config edit leaves the session on its last working environment.
func (o *Orchestrator) reload() error {
	o.logger.Info("Reloading configuration", logfields.Path(o.configPath))

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	env, err := o.factory(cfg, o.caches)
	if err != nil {
		return fmt.Errorf("failed to build environment: %w", err)
	}

	o.mu.Lock()
	prev := o.env
	o.env = env
	o.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			o.reporter.WatcherWarning(fmt.Errorf("failed to dispose previous environment: %w", err))
		}
	}

	if err := o.registerWatchers(cfg); err != nil {
		return err
	}

	o.logger.Info("Configuration reloaded")
	return nil
}

func (o *Orchestrator) currentEnv() *Environment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.env
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateClosing || o.state == StateClosed {
		return
	}
	o.state = s
}

// Close tears down the session: stops the periodic scheduler, closes every
// watch subscription, disposes the environment, and drains the build
// scheduler. Individual failures are collected and returned once as a
// CloseError; nothing is skipped because an earlier step failed. Safe for
// concurrent calls; the environment is disposed exactly once.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		var errs []error

		o.mu.Lock()
		o.state = StateClosing
		cancel := o.cancel
		cron := o.cron
		subs := o.subs
		env := o.env
		o.subs = nil
		o.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if o.debouncer != nil {
			o.debouncer.Stop()
		}
		if cron != nil {
			if err := cron.Shutdown(); err != nil {
				errs = append(errs, fmt.Errorf("periodic rebuild scheduler: %w", err))
			}
		}

		for _, sub := range subs {
			if err := sub.Close(); err != nil {
				errs = append(errs, fmt.Errorf("watch subscription: %w", err))
			}
		}

		o.wg.Wait()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := o.sched.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}

		if env != nil {
			if err := env.Close(); err != nil {
				errs = append(errs, fmt.Errorf("environment: %w", err))
			}
		}

		o.mu.Lock()
		o.state = StateClosed
		o.mu.Unlock()

		if len(errs) > 0 {
			o.closeErr = &CloseError{Errs: errs}
		}
		o.logger.Info("Watch session closed")
	})
	return o.closeErr
}
