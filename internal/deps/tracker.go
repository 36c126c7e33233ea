package deps

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// SnapshotCache persists dependency snapshots across builds and diffs new
// snapshots against the persisted baseline.
type SnapshotCache interface {
	Evaluate(ctx context.Context, next *Snapshot) (*Diff, error)
	Commit(ctx context.Context, snap *Snapshot) error
}

// TrackingService builds dependency snapshots from resolved plans and
// evaluates them against the configured cache. With no cache configured it
// fails open: every token is treated as changed rather than risking a
// silently skipped stale token.
type TrackingService struct {
	cache  SnapshotCache
	bus    *pipeline.Bus
	logger *slog.Logger
}

// NewTrackingService creates a tracking service. cache and bus may be nil.
func NewTrackingService(cache SnapshotCache, bus *pipeline.Bus) *TrackingService {
	return &TrackingService{cache: cache, bus: bus, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (s *TrackingService) WithLogger(logger *slog.Logger) *TrackingService {
	s.logger = logger
	return s
}

// Evaluate builds a snapshot from the plan and diffs it against the cache's
// prior state. Lifecycle events are published on the bus with the changed
// count as an attribute.
func (s *TrackingService) Evaluate(ctx context.Context, buildID string, plan *token.ResolvedPlan) (*Snapshot, *Diff, error) {
	s.publish(pipeline.StageStart(buildID, pipeline.StageDependencies, map[string]any{
		"tokenCount": plan.TokenCount(),
	}))

	snap, err := CreateSnapshot(plan)
	if err != nil {
		s.publish(pipeline.StageError(buildID, pipeline.StageDependencies, err))
		return nil, nil, fmt.Errorf("failed to create dependency snapshot: %w", err)
	}

	var diff *Diff
	if s.cache == nil {
		s.logger.Debug("No dependency cache configured, rebuilding everything",
			logfields.BuildID(buildID), logfields.Tokens(len(snap.Entries)))
		diff = AllChanged(snap)
	} else {
		diff, err = s.cache.Evaluate(ctx, snap)
		if err != nil {
			s.publish(pipeline.StageError(buildID, pipeline.StageDependencies, err))
			return nil, nil, fmt.Errorf("failed to evaluate dependency cache: %w", err)
		}
	}

	s.publish(pipeline.StageComplete(buildID, pipeline.StageDependencies, map[string]any{
		"changedCount": len(diff.Changed),
		"removedCount": len(diff.Removed),
	}))
	s.logger.Debug("Dependency diff evaluated",
		logfields.BuildID(buildID),
		logfields.Changed(len(diff.Changed)),
		logfields.Removed(len(diff.Removed)))
	return snap, diff, nil
}

// Commit persists the snapshot as the new baseline. Callers must invoke it
// only after the corresponding build succeeded, never speculatively.
func (s *TrackingService) Commit(ctx context.Context, buildID string, snap *Snapshot) error {
	if s.cache == nil {
		return nil
	}
	s.publish(pipeline.StageStart(buildID, pipeline.StageCommit, nil))
	if err := s.cache.Commit(ctx, snap); err != nil {
		s.publish(pipeline.StageError(buildID, pipeline.StageCommit, err))
		return fmt.Errorf("failed to commit dependency snapshot: %w", err)
	}
	s.publish(pipeline.StageComplete(buildID, pipeline.StageCommit, map[string]any{
		"entryCount": len(snap.Entries),
	}))
	return nil
}

func (s *TrackingService) publish(e pipeline.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(e); err != nil {
		s.logger.Warn("Stage event handler failed", "event", e.Name(), logfields.Error(err))
	}
}
