// Package selector implements the declarative token matcher shared by the
// transform and formatter engines. A selector is a tagged configuration
// struct evaluated by one pure function; predicates are ordinary function
// values, not reflection.
package selector

import (
	"regexp"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// PointerPattern matches token pointers. Patterns are regular expressions
// or arbitrary predicates.
type PointerPattern interface {
	Match(p token.Pointer) bool
}

type regexpPattern struct{ re *regexp.Regexp }

func (r regexpPattern) Match(p token.Pointer) bool { return r.re.MatchString(string(p)) }

// Pattern wraps a compiled regular expression as a PointerPattern.
func Pattern(re *regexp.Regexp) PointerPattern { return regexpPattern{re: re} }

// PatternFunc adapts a predicate function to a PointerPattern.
type PatternFunc func(p token.Pointer) bool

func (f PatternFunc) Match(p token.Pointer) bool { return f(p) }

// Selector restricts which tokens a definition processes. A selector with
// no clauses matches everything; every set clause must match.
type Selector struct {
	// Types restricts by declared token type.
	Types []string
	// Pointers matches if any pattern matches the token's pointer.
	Pointers []PointerPattern
	// Tags requires every named tag to be present on the token.
	Tags []string
	// Metadata receives the snapshot's metadata. A selector with a
	// Metadata clause never matches a snapshot without metadata.
	Metadata func(m *token.Metadata) bool
	// Where receives the whole snapshot.
	Where func(s *token.Snapshot) bool
	// Transforms requires the named transform outputs to exist for the
	// token. Only the formatter stage populates the outputs argument.
	Transforms []string
}

// Matches evaluates the selector against a snapshot and, for the formatter
// stage, the token's available transform outputs.
func (s Selector) Matches(snap *token.Snapshot, transformOutputs map[string]any) bool {
	if len(s.Types) > 0 && !contains(s.Types, snap.Type) {
		return false
	}

	if len(s.Pointers) > 0 {
		matched := false
		for _, p := range s.Pointers {
			if p.Match(snap.Pointer) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(s.Tags) > 0 {
		available := tokenTags(snap)
		for _, tag := range s.Tags {
			if _, ok := available[tag]; !ok {
				return false
			}
		}
	}

	if s.Metadata != nil {
		if snap.Metadata == nil || !s.Metadata(snap.Metadata) {
			return false
		}
	}

	if s.Where != nil && !s.Where(snap) {
		return false
	}

	for _, name := range s.Transforms {
		if _, ok := transformOutputs[name]; !ok {
			return false
		}
	}

	return true
}

// tokenTags unions explicit metadata tags, string-array extension values,
// and any $tags carried on the raw token.
func tokenTags(snap *token.Snapshot) map[string]struct{} {
	tags := make(map[string]struct{})

	if snap.Metadata != nil {
		for _, t := range snap.Metadata.Tags {
			tags[t] = struct{}{}
		}
		for _, v := range snap.Metadata.Extensions {
			addStringSlice(tags, v)
		}
	}

	if raw, ok := snap.Raw.(map[string]any); ok {
		addStringSlice(tags, raw["$tags"])
	}

	return tags
}

func addStringSlice(tags map[string]struct{}, v any) {
	switch vals := v.(type) {
	case []string:
		for _, t := range vals {
			tags[t] = struct{}{}
		}
	case []any:
		for _, item := range vals {
			if t, ok := item.(string); ok {
				tags[t] = struct{}{}
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
