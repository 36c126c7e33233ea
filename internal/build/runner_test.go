package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tokenforge/internal/cache"
	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/deps"
	"git.home.luguber.info/inful/tokenforge/internal/format"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/token"
	"git.home.luguber.info/inful/tokenforge/internal/transform"
)

type fakePlanner struct {
	docs   []token.SourceDocument
	issues []token.Issue
	err    error
}

func (p *fakePlanner) PlanSources(ctx context.Context, cfg *config.Config) ([]token.SourceDocument, []token.Issue, error) {
	return p.docs, p.issues, p.err
}

type fakeParser struct {
	plan  *token.ResolvedPlan
	err   error
	calls int
}

func (p *fakeParser) Parse(ctx context.Context, plan *pipeline.BuildPlan) (*token.ResolvedPlan, error) {
	p.calls++
	return p.plan, p.err
}

type fakeWriter struct {
	writes    int
	artifacts []token.FileArtifact
	err       error
}

func (w *fakeWriter) Write(ctx context.Context, artifacts []token.FileArtifact) error {
	if w.err != nil {
		return w.err
	}
	w.writes++
	w.artifacts = append(w.artifacts, artifacts...)
	return nil
}

// runnerFixture wires a runner around fake ports, a real dependency cache,
// and one counting transform feeding one formatter.
type runnerFixture struct {
	runner  *Runner
	planner *fakePlanner
	parser  *fakeParser
	writer  *fakeWriter
	bus     *pipeline.Bus

	// transformRuns counts handler invocations that actually saw tokens.
	transformRuns *int
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	docs := []token.SourceDocument{{URI: "tokens/core.json", Description: "core"}}
	plan := &token.ResolvedPlan{Entries: []token.SourceEntry{{
		Document: docs[0],
		Tokens: []token.Snapshot{
			{Pointer: "/color/primary", Value: "#336699", Provenance: token.Provenance{DocumentURI: docs[0].URI}},
			{Pointer: "/spacing/sm", Value: "4px", Provenance: token.Provenance{DocumentURI: docs[0].URI}},
		},
	}}}

	strat, err := deps.DefaultRegistry().New(deps.StrategySnapshot, nil)
	require.NoError(t, err)
	depCache := cache.NewDependencyCache(filepath.Join(t.TempDir(), "deps.json"), strat)

	bus := pipeline.NewBus()

	runs := 0
	treg := transform.NewRegistry()
	require.NoError(t, treg.Register(&transform.Definition{
		Name: "value/echo",
		Handler: func(_ context.Context, tc *transform.Context) (map[token.Pointer]any, error) {
			runs++
			out := make(map[token.Pointer]any, len(tc.Tokens))
			for _, tok := range tc.Tokens {
				out[tok.Pointer] = fmt.Sprint(tok.Value)
			}
			return out, nil
		},
	}))

	freg := format.NewRegistry()
	require.NoError(t, freg.Register(&format.Definition{
		Name: "list",
		Handler: func(_ context.Context, fc *format.Context) ([]token.FileArtifact, error) {
			return []token.FileArtifact{{Path: "tokens.txt", Contents: []byte("x"), Encoding: token.EncodingUTF8}}, nil
		},
	}))

	f := &runnerFixture{
		planner:       &fakePlanner{docs: docs},
		parser:        &fakeParser{plan: plan},
		writer:        &fakeWriter{},
		bus:           bus,
		transformRuns: &runs,
	}

	f.runner, err = NewRunner(Options{
		Config:     &config.Config{Output: config.OutputConfig{Directory: "dist"}},
		Planner:    f.planner,
		Parser:     f.parser,
		Tracker:    deps.NewTrackingService(depCache, bus),
		Transforms: transform.NewEngine(treg),
		Formatters: format.NewEngine(freg),
		Writer:     f.writer,
		Bus:        bus,
	})
	require.NoError(t, err)
	return f
}

func subscribeStageLog(bus *pipeline.Bus) *[]string {
	var log []string
	bus.SubscribeStages(func(e pipeline.Event) error {
		se, ok := e.(pipeline.StageEvent)
		if !ok {
			return nil
		}
		log = append(log, se.Stage+"/"+se.Type)
		return nil
	})
	return &log
}

func TestRunnerStageSequence(t *testing.T) {
	f := newRunnerFixture(t)
	log := subscribeStageLog(f.bus)

	summary, err := f.runner.Run(context.Background(), "manual build", false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"planning/stage:start", "planning/stage:complete",
		"parsing/stage:start", "parsing/stage:complete",
		"dependency-tracking/stage:start", "dependency-tracking/stage:complete",
		"transforms/stage:start", "transforms/stage:complete",
		"formatters/stage:start", "formatters/stage:complete",
		"artifact-write/stage:start", "artifact-write/stage:complete",
		"dependency-commit/stage:start", "dependency-commit/stage:complete",
	}, *log)

	assert.NotEmpty(t, summary.BuildID)
	assert.Equal(t, "manual build", summary.Reason)
	assert.Equal(t, 2, summary.Tokens)
	assert.Equal(t, 2, summary.Changed, "first build changes everything")
	assert.Equal(t, 1, summary.Artifacts)
	assert.Equal(t, 1, f.writer.writes)
}

func TestRunnerPlanningIssuesAbort(t *testing.T) {
	f := newRunnerFixture(t)
	f.planner.issues = []token.Issue{{Severity: token.SeverityError, Message: "source matched no documents"}}
	log := subscribeStageLog(f.bus)

	_, err := f.runner.Run(context.Background(), "manual build", false)
	require.Error(t, err)

	var planErr *pipeline.PlanningError
	require.ErrorAs(t, err, &planErr)
	assert.Len(t, planErr.Issues, 1)

	assert.Zero(t, f.parser.calls, "parse never runs after planning issues")
	assert.Zero(t, f.writer.writes)
	assert.Equal(t, []string{"planning/stage:start", "planning/stage:error"}, *log)
}

func TestRunnerWriterErrorSkipsCommit(t *testing.T) {
	f := newRunnerFixture(t)
	f.writer.err = errors.New("disk full")
	log := subscribeStageLog(f.bus)

	_, err := f.runner.Run(context.Background(), "manual build", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact write failed")

	for _, entry := range *log {
		assert.NotContains(t, entry, "dependency-commit", "baseline must not move on failure")
	}

	// The failed build never became the baseline, so the next build still
	// sees every token as changed.
	f.writer.err = nil
	summary, err := f.runner.Run(context.Background(), "manual build", false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Changed)
}

func TestRunnerIncrementalBuildReusesResults(t *testing.T) {
	f := newRunnerFixture(t)

	first, err := f.runner.Run(context.Background(), "initial build", false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Changed)
	assert.Equal(t, 1, *f.transformRuns)

	// Same inputs: nothing changed, transform outputs come from the prior
	// build and the handler is not invoked again.
	second, err := f.runner.Run(context.Background(), "source change: tokens/core.json", false)
	require.NoError(t, err)
	assert.Zero(t, second.Changed)
	assert.Equal(t, 1, *f.transformRuns)
	assert.Equal(t, 1, second.Artifacts, "formatters still see reused outputs")
}

func TestRunnerFullRebuildBypassesDiff(t *testing.T) {
	f := newRunnerFixture(t)

	_, err := f.runner.Run(context.Background(), "initial build", false)
	require.NoError(t, err)
	require.Equal(t, 1, *f.transformRuns)

	summary, err := f.runner.Run(context.Background(), "scheduled full rebuild", true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Changed, "full rebuild treats every token as changed")
	assert.Equal(t, 2, *f.transformRuns, "handler recomputes despite unchanged inputs")
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(Options{})
	assert.Error(t, err)

	_, err = NewRunner(Options{Config: &config.Config{}})
	assert.Error(t, err)
}
