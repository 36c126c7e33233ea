// Package build composes the per-cycle pipeline: source planning, parsing,
// dependency tracking, transforms, formatters, artifact hand-off, and the
// final dependency commit.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/deps"
	"git.home.luguber.info/inful/tokenforge/internal/format"
	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/metrics"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/token"
	"git.home.luguber.info/inful/tokenforge/internal/transform"
)

// Runner executes one build cycle at a time. It is not safe for concurrent
// use; callers serialize builds through the sequential scheduler.
type Runner struct {
	cfg        *config.Config
	planner    pipeline.SourcePlanner
	parser     pipeline.Parser
	tracker    *deps.TrackingService
	transforms *transform.Engine
	formatters *format.Engine
	writer     pipeline.ArtifactWriter
	bus        *pipeline.Bus
	recorder   metrics.Recorder
	logger     *slog.Logger

	// prior holds the last successful build's transform results so
	// unchanged tokens can reuse their outputs.
	prior *transform.ResultSet
}

// Options bundles the runner's collaborators.
type Options struct {
	Config     *config.Config
	Planner    pipeline.SourcePlanner
	Parser     pipeline.Parser
	Tracker    *deps.TrackingService
	Transforms *transform.Engine
	Formatters *format.Engine
	Writer     pipeline.ArtifactWriter
	Bus        *pipeline.Bus
	Recorder   metrics.Recorder
	Logger     *slog.Logger
}

// NewRunner creates a build runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Planner == nil || opts.Parser == nil {
		return nil, fmt.Errorf("planner and parser ports are required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("dependency tracker is required")
	}
	if opts.Transforms == nil || opts.Formatters == nil {
		return nil, fmt.Errorf("transform and formatter engines are required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("artifact writer is required")
	}

	r := &Runner{
		cfg:        opts.Config,
		planner:    opts.Planner,
		parser:     opts.Parser,
		tracker:    opts.Tracker,
		transforms: opts.Transforms,
		formatters: opts.Formatters,
		writer:     opts.Writer,
		bus:        opts.Bus,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
	}
	if r.recorder == nil {
		r.recorder = metrics.NoopRecorder{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Run executes one build cycle. full bypasses the dependency diff.
func (r *Runner) Run(ctx context.Context, reason string, full bool) (pipeline.BuildSummary, error) {
	buildID := uuid.NewString()
	started := time.Now()

	r.logger.Info("Starting build",
		logfields.BuildID(buildID), logfields.Reason(reason))

	summary, err := r.run(ctx, buildID, reason, full)
	duration := time.Since(started)
	r.recorder.ObserveBuildDuration(duration)

	if err != nil {
		r.recorder.IncBuildOutcome("failed")
		r.logger.Error("Build failed",
			logfields.BuildID(buildID),
			logfields.Reason(reason),
			logfields.DurationMS(float64(duration.Milliseconds())),
			logfields.Error(err))
		return pipeline.BuildSummary{BuildID: buildID, Reason: reason, Duration: duration}, err
	}

	summary.BuildID = buildID
	summary.Reason = reason
	summary.Duration = duration
	r.recorder.IncBuildOutcome("success")
	r.logger.Info("Build completed",
		logfields.BuildID(buildID),
		logfields.Changed(summary.Changed),
		logfields.Artifacts(summary.Artifacts),
		logfields.DurationMS(float64(duration.Milliseconds())))
	return summary, nil
}

func (r *Runner) run(ctx context.Context, buildID, reason string, full bool) (pipeline.BuildSummary, error) {
	var summary pipeline.BuildSummary

	// Planning.
	var sources []token.SourceDocument
	err := r.stage(buildID, pipeline.StagePlanning, func() (map[string]any, error) {
		docs, issues, err := r.planner.PlanSources(ctx, r.cfg)
		if err != nil {
			return nil, fmt.Errorf("source planning failed: %w", err)
		}
		if err := pipeline.NewPlanningError(issues); err != nil {
			return nil, err
		}
		sources = docs
		return map[string]any{"documentCount": len(docs)}, nil
	})
	if err != nil {
		return summary, err
	}

	plan := pipeline.NewBuildPlanBuilder(r.cfg).
		WithSources(sources).
		WithOutput(r.cfg.Output.Directory).
		WithBuild(buildID, reason).
		WithFull(full).
		Build()

	// Parsing (external).
	var resolved *token.ResolvedPlan
	err = r.stage(buildID, pipeline.StageParsing, func() (map[string]any, error) {
		rp, err := r.parser.Parse(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("parsing failed: %w", err)
		}
		resolved = rp
		attrs := map[string]any{"tokenCount": rp.TokenCount()}
		if rp.Metrics != nil {
			attrs["parseHits"] = rp.Metrics.Hits
			attrs["parseMisses"] = rp.Metrics.Misses
			attrs["parseSkips"] = rp.Metrics.Skips
			for i := 0; i < rp.Metrics.Hits; i++ {
				r.recorder.IncCacheLookup("documents", true)
			}
			for i := 0; i < rp.Metrics.Misses; i++ {
				r.recorder.IncCacheLookup("documents", false)
			}
		}
		return attrs, nil
	})
	if err != nil {
		return summary, err
	}

	// Dependency tracking. The tracker publishes its own stage events.
	snapshot, diff, err := r.tracker.Evaluate(ctx, buildID, resolved)
	if err != nil {
		return summary, err
	}
	if plan.Full {
		diff = deps.AllChanged(snapshot)
	}
	r.recorder.SetChangedTokens(len(diff.Changed))

	snapshots := collectSnapshots(resolved)
	summary.Tokens = len(snapshots)
	summary.Changed = len(diff.Changed)

	// Transforms.
	var results *transform.ResultSet
	err = r.stage(buildID, pipeline.StageTransforms, func() (map[string]any, error) {
		opts := transform.RunOptions{BuildID: buildID}
		if !plan.Full {
			opts.Changed = diff.IsChanged
			opts.Prior = r.prior
		}
		rs, err := r.transforms.Run(ctx, snapshots, opts)
		if err != nil {
			return nil, err
		}
		results = rs
		return map[string]any{"resultCount": rs.Len()}, nil
	})
	if err != nil {
		return summary, err
	}

	// Formatters.
	var artifacts []token.FileArtifact
	err = r.stage(buildID, pipeline.StageFormatters, func() (map[string]any, error) {
		out, err := r.formatters.Run(ctx, buildID, snapshots, results)
		if err != nil {
			return nil, err
		}
		artifacts = out
		return map[string]any{"artifactCount": len(out)}, nil
	})
	if err != nil {
		return summary, err
	}
	summary.Artifacts = len(artifacts)

	// Artifact hand-off (external writer).
	err = r.stage(buildID, pipeline.StageArtifacts, func() (map[string]any, error) {
		if err := r.writer.Write(ctx, artifacts); err != nil {
			return nil, fmt.Errorf("artifact write failed: %w", err)
		}
		return map[string]any{"artifactCount": len(artifacts)}, nil
	})
	if err != nil {
		return summary, err
	}

	// Commit the new baseline only after everything above succeeded.
	if err := r.tracker.Commit(ctx, buildID, snapshot); err != nil {
		return summary, err
	}

	r.prior = results
	return summary, nil
}

// stage wraps one build stage with lifecycle events and metrics.
func (r *Runner) stage(buildID, name string, fn func() (map[string]any, error)) error {
	r.publish(pipeline.StageStart(buildID, name, nil))
	started := time.Now()

	attrs, err := fn()
	r.recorder.ObserveStageDuration(name, time.Since(started))

	if err != nil {
		r.recorder.IncStageResult(name, metrics.ResultFailed)
		r.publish(pipeline.StageError(buildID, name, err))
		return err
	}
	r.recorder.IncStageResult(name, metrics.ResultSuccess)
	r.publish(pipeline.StageComplete(buildID, name, attrs))
	return nil
}

func (r *Runner) publish(e pipeline.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(e); err != nil {
		r.logger.Warn("Stage event handler failed", "event", e.Name(), logfields.Error(err))
	}
}

func collectSnapshots(plan *token.ResolvedPlan) []token.Snapshot {
	snapshots := make([]token.Snapshot, 0, plan.TokenCount())
	for _, entry := range plan.Entries {
		snapshots = append(snapshots, entry.Tokens...)
	}
	return snapshots
}
