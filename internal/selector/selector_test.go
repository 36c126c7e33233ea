package selector

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

func colorToken() *token.Snapshot {
	return &token.Snapshot{
		Pointer: "/color/primary",
		Type:    "color",
		Value:   "#336699",
		Metadata: &token.Metadata{
			Tags: []string{"brand"},
			Extensions: map[string]any{
				"com.example.categories": []any{"palette"},
			},
		},
		Raw: map[string]any{
			"$value": "#336699",
			"$tags":  []any{"raw-tag"},
		},
	}
}

func TestEmptySelectorMatchesEverything(t *testing.T) {
	s := Selector{}
	assert.True(t, s.Matches(colorToken(), nil))
	assert.True(t, s.Matches(&token.Snapshot{Pointer: "/x"}, nil))
}

func TestTypesClause(t *testing.T) {
	s := Selector{Types: []string{"color"}}
	assert.True(t, s.Matches(colorToken(), nil))

	dimension := &token.Snapshot{Pointer: "/spacing/sm", Type: "dimension"}
	assert.False(t, s.Matches(dimension, nil))
}

func TestPointersClauseAnyPatternMatches(t *testing.T) {
	s := Selector{Pointers: []PointerPattern{
		Pattern(regexp.MustCompile(`^/spacing/`)),
		Pattern(regexp.MustCompile(`^/color/`)),
	}}
	assert.True(t, s.Matches(colorToken(), nil))

	s = Selector{Pointers: []PointerPattern{
		Pattern(regexp.MustCompile(`^/typography/`)),
	}}
	assert.False(t, s.Matches(colorToken(), nil))
}

func TestPointersPredicate(t *testing.T) {
	s := Selector{Pointers: []PointerPattern{
		PatternFunc(func(p token.Pointer) bool { return p == "/color/primary" }),
	}}
	assert.True(t, s.Matches(colorToken(), nil))
}

func TestTagsClauseUnionsAllSources(t *testing.T) {
	// Metadata tags, string-slice extension values, and raw $tags all count.
	for _, tag := range []string{"brand", "palette", "raw-tag"} {
		s := Selector{Tags: []string{tag}}
		assert.True(t, s.Matches(colorToken(), nil), "tag %q", tag)
	}

	s := Selector{Tags: []string{"brand", "missing"}}
	assert.False(t, s.Matches(colorToken(), nil), "every named tag must be present")
}

func TestMetadataClauseRequiresMetadata(t *testing.T) {
	s := Selector{Metadata: func(m *token.Metadata) bool { return true }}

	bare := &token.Snapshot{Pointer: "/x"}
	assert.False(t, s.Matches(bare, nil), "metadata clause with no metadata never matches")
	assert.True(t, s.Matches(colorToken(), nil))

	s = Selector{Metadata: func(m *token.Metadata) bool { return m.Deprecated }}
	assert.False(t, s.Matches(colorToken(), nil))
}

func TestWhereClause(t *testing.T) {
	s := Selector{Where: func(snap *token.Snapshot) bool { return snap.Value == "#336699" }}
	assert.True(t, s.Matches(colorToken(), nil))

	s = Selector{Where: func(snap *token.Snapshot) bool { return false }}
	assert.False(t, s.Matches(colorToken(), nil))
}

func TestTransformsClauseRequiresAllOutputs(t *testing.T) {
	s := Selector{Transforms: []string{"a", "b"}}

	assert.False(t, s.Matches(colorToken(), nil))
	assert.False(t, s.Matches(colorToken(), map[string]any{"a": 1}))
	assert.True(t, s.Matches(colorToken(), map[string]any{"a": 1, "b": 2}))
}

func TestAllClausesMustMatch(t *testing.T) {
	s := Selector{
		Types: []string{"color"},
		Tags:  []string{"brand"},
	}
	assert.True(t, s.Matches(colorToken(), nil))

	s.Types = []string{"dimension"}
	assert.False(t, s.Matches(colorToken(), nil))
}
