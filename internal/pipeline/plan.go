package pipeline

import (
	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// BuildPlan is an immutable execution plan derived from config.
// It captures normalized inputs and knobs for the pipeline stages.
type BuildPlan struct {
	Config    *config.Config
	Sources   []token.SourceDocument
	OutputDir string

	BuildID string
	Reason  string

	// Full bypasses the dependency diff and rebuilds every token.
	Full bool
}

// BuildPlanBuilder constructs a BuildPlan step by step.
type BuildPlanBuilder struct {
	plan BuildPlan
}

// NewBuildPlanBuilder creates a builder with base config.
func NewBuildPlanBuilder(cfg *config.Config) *BuildPlanBuilder {
	return &BuildPlanBuilder{plan: BuildPlan{Config: cfg}}
}

// WithSources sets the planned source documents.
func (b *BuildPlanBuilder) WithSources(sources []token.SourceDocument) *BuildPlanBuilder {
	b.plan.Sources = sources
	return b
}

// WithOutput sets the output directory.
func (b *BuildPlanBuilder) WithOutput(dir string) *BuildPlanBuilder {
	b.plan.OutputDir = dir
	return b
}

// WithBuild tags the plan with a build id and trigger reason.
func (b *BuildPlanBuilder) WithBuild(id, reason string) *BuildPlanBuilder {
	b.plan.BuildID = id
	b.plan.Reason = reason
	return b
}

// WithFull forces a full rebuild regardless of the dependency diff.
func (b *BuildPlanBuilder) WithFull(full bool) *BuildPlanBuilder {
	b.plan.Full = full
	return b
}

// Build returns the assembled plan.
func (b *BuildPlanBuilder) Build() *BuildPlan {
	p := b.plan
	return &p
}
