package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

func runBuiltins(t *testing.T, snapshots []token.Snapshot) *ResultSet {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	rs, err := NewEngine(r).Run(context.Background(), snapshots, RunOptions{BuildID: "b1"})
	require.NoError(t, err)
	return rs
}

func TestBuiltinNameTransforms(t *testing.T) {
	rs := runBuiltins(t, []token.Snapshot{
		{Pointer: "/color/primary/dark", Value: "#223344"},
	})

	outputs := rs.Outputs("/color/primary/dark")
	require.NotNil(t, outputs)
	assert.Equal(t, "color-primary-dark", outputs[TransformNameKebab])
	assert.Equal(t, "colorPrimaryDark", outputs[TransformNameCamel])
	assert.Equal(t, "COLOR_PRIMARY_DARK", outputs[TransformNameConstant])
}

func TestBuiltinValueStringPrefersResolvedValue(t *testing.T) {
	rs := runBuiltins(t, []token.Snapshot{
		{
			Pointer:    "/spacing/sm",
			Value:      "{spacing.base}",
			Resolution: token.ResolutionRecord{ResolvedValue: "4px"},
		},
		{Pointer: "/spacing/raw", Value: 8},
	})

	assert.Equal(t, "4px", rs.Outputs("/spacing/sm")[TransformValueString])
	assert.Equal(t, "8", rs.Outputs("/spacing/raw")[TransformValueString])
}

func TestRegisterNamedSubset(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterNamed(r, []string{TransformNameKebab, TransformValueString}))
	assert.Equal(t, []string{TransformNameKebab, TransformValueString}, r.Names())
}

func TestRegisterNamedUnknownTransform(t *testing.T) {
	r := NewRegistry()
	err := RegisterNamed(r, []string{"name/pascal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name/pascal")
}
