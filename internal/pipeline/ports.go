package pipeline

import (
	"context"
	"time"

	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// Parser resolves token documents into snapshots. Parsing and reference
// resolution are owned by an external library; the engine only consumes the
// resolved plan.
type Parser interface {
	Parse(ctx context.Context, plan *BuildPlan) (*token.ResolvedPlan, error)
}

// SourcePlanner enumerates concrete source documents for the configured
// sources. A non-empty issue list aborts the build via PlanningError.
type SourcePlanner interface {
	PlanSources(ctx context.Context, cfg *config.Config) ([]token.SourceDocument, []token.Issue, error)
}

// ArtifactWriter persists generated artifacts. Writing is delegated out of
// the engine so callers control layout, atomicity, and dry runs.
type ArtifactWriter interface {
	Write(ctx context.Context, artifacts []token.FileArtifact) error
}

// BuildSummary describes a completed build for reporters.
type BuildSummary struct {
	BuildID   string
	Reason    string
	Tokens    int
	Changed   int
	Artifacts int
	Duration  time.Duration
}

// Reporter receives build lifecycle notifications. Human and JSON reporters
// live with the CLI; the engine only calls these hooks.
type Reporter interface {
	BuildSucceeded(summary BuildSummary)
	BuildFailed(reason string, err error)
	WatcherWarning(err error)
}
