package deps

import (
	"math"
	"strings"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// StrategyGraph extends the snapshot strategy by propagating change through
// recorded dependency edges.
const StrategyGraph = "graph"

// graphStrategy marks a token changed when its own hash changed or when any
// of its recorded dependencies is in the changed set, up to maxDepth edges
// away from a directly changed token. It trades extra recomputation for
// soundness when a token's rendered output depends on a referenced token in
// ways its own hash does not capture.
type graphStrategy struct {
	maxDepth   int
	transitive bool
}

func newGraphStrategy(options map[string]any) (Strategy, error) {
	if err := rejectUnknownOptions(StrategyGraph, options, "maxDepth", "transitive"); err != nil {
		return nil, err
	}

	s := graphStrategy{maxDepth: math.MaxInt, transitive: true}

	if raw, ok := options["maxDepth"]; ok {
		depth, ok := asPositiveInt(raw)
		if !ok {
			return nil, &OptionError{Strategy: StrategyGraph, Option: "maxDepth", Reason: "must be a positive finite integer"}
		}
		s.maxDepth = depth
	}
	if raw, ok := options["transitive"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return nil, &OptionError{Strategy: StrategyGraph, Option: "transitive", Reason: "must be a boolean"}
		}
		s.transitive = b
	}
	return s, nil
}

func (graphStrategy) Name() string { return StrategyGraph }

func (s graphStrategy) Diff(prev, next *Snapshot) (*Diff, error) {
	base, err := snapshotStrategy{}.Diff(prev, next)
	if err != nil {
		return nil, err
	}
	if prev == nil || len(base.Changed) == 0 {
		return base, nil
	}

	// Reverse dependency index over the new snapshot: dependency pointer ->
	// dependent pointers.
	dependents := make(map[token.Pointer][]token.Pointer)
	for _, e := range next.Entries {
		for _, dep := range e.Dependencies {
			p := depPointer(dep)
			dependents[p] = append(dependents[p], e.Pointer)
		}
	}

	// Breadth-first propagation. maxDepth counts edges traversed from a
	// directly changed token; transitive=false stops after the first hop.
	limit := s.maxDepth
	if !s.transitive && limit > 1 {
		limit = 1
	}

	frontier := make([]token.Pointer, 0, len(base.Changed))
	for p := range base.Changed {
		frontier = append(frontier, p)
	}

	for depth := 0; depth < limit && len(frontier) > 0; depth++ {
		var nextFrontier []token.Pointer
		for _, p := range frontier {
			for _, dependent := range dependents[p] {
				if _, seen := base.Changed[dependent]; seen {
					continue
				}
				base.Changed[dependent] = struct{}{}
				nextFrontier = append(nextFrontier, dependent)
			}
		}
		frontier = nextFrontier
	}
	return base, nil
}

// depPointer extracts the pointer part of a "<uri>#<pointer>" dependency.
func depPointer(dep string) token.Pointer {
	if i := strings.LastIndex(dep, "#"); i >= 0 {
		return token.Pointer(dep[i+1:])
	}
	return token.Pointer(dep)
}

// asPositiveInt accepts the numeric shapes YAML and JSON decoding produce.
func asPositiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		if n > 0 {
			return n, true
		}
	case int64:
		if n > 0 && n <= math.MaxInt {
			return int(n), true
		}
	case float64:
		if n > 0 && !math.IsInf(n, 0) && !math.IsNaN(n) && n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
