package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// ResultSet holds transform results grouped by pointer for downstream
// stages. Results() returns them sorted by pointer, then transform name.
type ResultSet struct {
	results   []Result
	byPointer map[token.Pointer]map[string]any
	index     map[token.Pointer]map[string]Result
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{
		byPointer: make(map[token.Pointer]map[string]any),
		index:     make(map[token.Pointer]map[string]Result),
	}
}

func (rs *ResultSet) add(r Result) {
	rs.results = append(rs.results, r)
	outputs := rs.byPointer[r.Pointer]
	if outputs == nil {
		outputs = make(map[string]any)
		rs.byPointer[r.Pointer] = outputs
	}
	outputs[r.Transform] = r.Output

	indexed := rs.index[r.Pointer]
	if indexed == nil {
		indexed = make(map[string]Result)
		rs.index[r.Pointer] = indexed
	}
	indexed[r.Transform] = r
}

// Outputs returns the transform-name -> output map for a pointer. The map
// must be treated as read-only.
func (rs *ResultSet) Outputs(p token.Pointer) map[string]any {
	return rs.byPointer[p]
}

// Results returns all results sorted by pointer, then transform name.
func (rs *ResultSet) Results() []Result {
	out := make([]Result, len(rs.results))
	copy(out, rs.results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pointer != out[j].Pointer {
			return out[i].Pointer < out[j].Pointer
		}
		return out[i].Transform < out[j].Transform
	})
	return out
}

// Len returns the number of results.
func (rs *ResultSet) Len() int { return len(rs.results) }

// Engine executes registered transforms over token snapshots.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates a transform engine over the registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// RunOptions controls one engine execution.
type RunOptions struct {
	BuildID string
	// Changed reports whether a token's inputs changed this build. Nil
	// means everything is treated as changed.
	Changed func(p token.Pointer) bool
	// Prior holds the previous build's results. Tokens outside the
	// changed set reuse their prior outputs with cache status "hit".
	Prior *ResultSet
}

// Run executes all registered transforms over the snapshots. Definitions
// run in name-sorted order; each sees only the tokens its selector matches
// and is invoked only when at least one token matches. Two runs over
// identical state produce identically ordered results.
func (e *Engine) Run(ctx context.Context, snapshots []token.Snapshot, opts RunOptions) (*ResultSet, error) {
	sorted := make([]token.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pointer < sorted[j].Pointer })

	rs := NewResultSet()

	for _, def := range e.registry.List() {
		optionsHash, err := def.OptionsHash()
		if err != nil {
			return nil, err
		}

		matched := make([]token.Snapshot, 0, len(sorted))
		reused := 0
		for i := range sorted {
			snap := &sorted[i]
			if !def.Selector.Matches(snap, nil) {
				continue
			}
			if e.reuse(rs, def, snap.Pointer, optionsHash, opts) {
				reused++
				continue
			}
			matched = append(matched, *snap)
		}

		if len(matched) == 0 {
			if reused > 0 {
				e.logger.Debug("Transform fully served from prior results",
					logfields.Transform(def.Name), logfields.Tokens(reused))
			}
			continue
		}

		outputs, err := def.Handler(ctx, &Context{
			BuildID: opts.BuildID,
			Tokens:  matched,
			Prior:   rs.byPointer,
		})
		if err != nil {
			return nil, fmt.Errorf("transform %q failed: %w", def.Name, err)
		}

		for i := range matched {
			p := matched[i].Pointer
			output, ok := outputs[p]
			if !ok {
				continue
			}
			rs.add(Result{
				Pointer:     p,
				Transform:   def.Name,
				Output:      output,
				Group:       def.Group,
				OptionsHash: optionsHash,
				CacheStatus: CacheMiss,
			})
		}
	}

	return rs, nil
}

// reuse copies the prior output for an unchanged token, when available.
func (e *Engine) reuse(rs *ResultSet, def *Definition, p token.Pointer, optionsHash string, opts RunOptions) bool {
	if opts.Changed == nil || opts.Prior == nil {
		return false
	}
	if opts.Changed(p) {
		return false
	}
	prior, ok := opts.Prior.index[p]
	if !ok {
		return false
	}
	result, ok := prior[def.Name]
	if !ok || result.OptionsHash != optionsHash {
		return false
	}
	rs.add(Result{
		Pointer:     p,
		Transform:   def.Name,
		Output:      result.Output,
		Group:       def.Group,
		OptionsHash: optionsHash,
		CacheStatus: CacheHit,
	})
	return true
}
