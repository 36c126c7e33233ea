// Package deps provides content-hash dependency tracking for incremental
// builds: deterministic per-token snapshots, pluggable diff strategies, and
// the tracking service that drives them.
package deps

import (
	"fmt"
	"sort"
	"time"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// SnapshotVersion is the current dependency snapshot format version.
// Bumping it turns every persisted snapshot into a cache miss.
const SnapshotVersion = 1

// Entry records one token's content hash and its dependency edges.
// Dependencies are "<uri>#<pointer>" strings, de-duplicated and sorted.
type Entry struct {
	Pointer      token.Pointer `json:"pointer"`
	Hash         string        `json:"hash"`
	Dependencies []string      `json:"dependencies"`
}

// Snapshot is an immutable point-in-time record of all resolved tokens'
// content hashes and dependency edges. Entries are sorted by pointer so two
// snapshots over identical inputs serialize byte-identically.
type Snapshot struct {
	Version    int       `json:"version"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Entries    []Entry   `json:"entries"`
}

// Diff is the result of comparing a new snapshot against a prior one.
// Removed is always a subset of Changed: a removed token is also "changed"
// from the consumer's point of view.
type Diff struct {
	Snapshot *Snapshot
	Changed  map[token.Pointer]struct{}
	Removed  map[token.Pointer]struct{}
}

// NewDiff allocates an empty diff for the given snapshot.
func NewDiff(snap *Snapshot) *Diff {
	return &Diff{
		Snapshot: snap,
		Changed:  make(map[token.Pointer]struct{}),
		Removed:  make(map[token.Pointer]struct{}),
	}
}

// AllChanged marks every entry of the snapshot as changed.
func AllChanged(snap *Snapshot) *Diff {
	d := NewDiff(snap)
	for _, e := range snap.Entries {
		d.Changed[e.Pointer] = struct{}{}
	}
	return d
}

// IsChanged reports whether the pointer is in the changed set.
func (d *Diff) IsChanged(p token.Pointer) bool {
	_, ok := d.Changed[p]
	return ok
}

// ChangedCount returns the number of changed pointers.
func (d *Diff) ChangedCount() int { return len(d.Changed) }

// CreateSnapshot derives a dependency snapshot from a resolved plan. For
// every token in every source entry it computes a content hash and the
// union of reference, resolution-path, and applied-alias edges. Re-running
// on an unchanged plan yields an identical snapshot.
func CreateSnapshot(plan *token.ResolvedPlan) (*Snapshot, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}

	entries := make([]Entry, 0, plan.TokenCount())
	for _, src := range plan.Entries {
		for i := range src.Tokens {
			snap := &src.Tokens[i]
			dependencies := collectDependencies(snap)
			hash, err := hashToken(snap, dependencies)
			if err != nil {
				return nil, fmt.Errorf("failed to hash token %s: %w", snap.Pointer, err)
			}
			entries = append(entries, Entry{
				Pointer:      snap.Pointer,
				Hash:         hash,
				Dependencies: dependencies,
			})
		}
	}

	// Sort entries by pointer for stable diffs independent of resolution order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Pointer < entries[j].Pointer
	})

	return &Snapshot{
		Version:    SnapshotVersion,
		ResolvedAt: plan.ResolvedAt,
		Entries:    entries,
	}, nil
}

// collectDependencies unions reference, resolution-path, and applied-alias
// pointers into a sorted, de-duplicated "<uri>#<pointer>" list.
func collectDependencies(snap *token.Snapshot) []string {
	set := make(map[string]struct{})
	for _, refs := range [][]token.Ref{
		snap.Resolution.References,
		snap.Resolution.ResolutionPath,
		snap.Resolution.AppliedAliases,
	} {
		for _, r := range refs {
			set[r.String()] = struct{}{}
		}
	}

	deps := make([]string, 0, len(set))
	for d := range set {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// entryIndex maps pointers to entries for O(1) lookups during diffing.
func entryIndex(snap *Snapshot) map[token.Pointer]*Entry {
	idx := make(map[token.Pointer]*Entry, len(snap.Entries))
	for i := range snap.Entries {
		idx[snap.Entries[i].Pointer] = &snap.Entries[i]
	}
	return idx
}
