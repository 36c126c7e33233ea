package format

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/token"
	"git.home.luguber.info/inful/tokenforge/internal/transform"
)

// Engine executes registered formatters over token snapshots and transform
// results.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates a formatter engine over the registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Run executes all registered formatters. Definitions run in name-sorted
// order; each sees only tokens its selector matches (including required
// transform outputs) and is invoked only when at least one token matches.
// The collected artifacts are returned sorted by output path so repeated
// runs over identical state are byte-for-byte reproducible.
func (e *Engine) Run(ctx context.Context, buildID string, snapshots []token.Snapshot, results *transform.ResultSet) ([]token.FileArtifact, error) {
	views := buildViews(snapshots, results)

	var artifacts []token.FileArtifact
	for _, def := range e.registry.List() {
		matched := make([]Token, 0, len(views))
		for i := range views {
			if def.Selector.Matches(views[i].snapshot, views[i].view.Transforms) {
				matched = append(matched, views[i].view)
			}
		}
		if len(matched) == 0 {
			continue
		}

		out, err := def.Handler(ctx, &Context{BuildID: buildID, Tokens: matched})
		if err != nil {
			return nil, fmt.Errorf("formatter %q failed: %w", def.Name, err)
		}
		artifacts = append(artifacts, out...)

		e.logger.Debug("Formatter executed",
			logfields.Formatter(def.Name),
			logfields.Tokens(len(matched)),
			logfields.Artifacts(len(out)))
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Path < artifacts[j].Path })
	return artifacts, nil
}

type tokenView struct {
	snapshot *token.Snapshot
	view     Token
}

// buildViews merges snapshots (sorted by pointer) with their transform
// outputs into the view formatters consume.
func buildViews(snapshots []token.Snapshot, results *transform.ResultSet) []tokenView {
	sorted := make([]token.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pointer < sorted[j].Pointer })

	views := make([]tokenView, len(sorted))
	for i := range sorted {
		snap := &sorted[i]
		var outputs map[string]any
		if results != nil {
			outputs = results.Outputs(snap.Pointer)
		}
		views[i] = tokenView{
			snapshot: snap,
			view: Token{
				Pointer:    snap.Pointer,
				Type:       snap.Type,
				Value:      snap.Resolution.ResolvedValue,
				Raw:        snap.Raw,
				Metadata:   snap.Metadata,
				Transforms: outputs,
			},
		}
	}
	return views
}
