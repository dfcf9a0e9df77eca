package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue_ReferenceSyntax(t *testing.T) {
	tests := []struct {
		raw   any
		isRef bool
	}{
		{"!OBS.dit", true},
		{"!SIM.spectral.wave_min", true},
		{"!", false},
		{"!nodot", false},
		{"plain", false},
		{42, false},
		{nil, false},
	}
	for _, tc := range tests {
		v := ParseValue(tc.raw)
		assert.Equal(t, tc.isRef, v.IsRef(), "ParseValue(%v)", tc.raw)
		assert.Equal(t, tc.raw, v.Raw())
	}
}

func TestValue_ResolveFollowsChain(t *testing.T) {
	// GIVEN !OBS.dit -> !SIM.default_dit -> 60
	p := NewProperties()
	p.Define("!SIM.default_dit", 60)
	p.Define("!OBS.dit", "!SIM.default_dit")

	// WHEN a reference to !OBS.dit is resolved
	got, err := Ref("!OBS.dit").Resolve(p)

	// THEN the literal at the end of the chain is returned
	require.NoError(t, err)
	assert.Equal(t, 60, got)
}

func TestValue_ResolveMissingAndCyclic(t *testing.T) {
	p := NewProperties()
	p.Define("!A.x", "!B.y")
	p.Define("!B.y", "!A.x")

	_, err := Ref("!OBS.missing").Resolve(p)
	assert.True(t, errors.Is(err, ErrMissingParameter), "missing key: %v", err)

	_, err = Ref("!A.x").Resolve(p)
	assert.True(t, errors.Is(err, ErrMissingParameter), "cyclic chain must stop: %v", err)

	_, err = Ref("!A.x").Resolve(nil)
	assert.True(t, errors.Is(err, ErrMissingParameter), "nil config: %v", err)
}

func TestValue_LiteralResolvesWithoutConfig(t *testing.T) {
	got, err := Literal(3.5).Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)
}

func TestConversions(t *testing.T) {
	f, err := ToFloat("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	_, err = ToFloat("abc")
	assert.Error(t, err)

	n, err := ToInt(4.0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ToInt(4.5)
	assert.Error(t, err)

	b, err := ToBool(" True ")
	require.NoError(t, err)
	assert.True(t, b)

	fs, err := ToFloats([]any{1, 2.5, "3"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, fs)

	fs, err = ToFloats(7)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, fs)

	zs, err := ToInts([]any{90, 390, 490})
	require.NoError(t, err)
	assert.Equal(t, []int{90, 390, 490}, zs)
}

func TestMeta_InsertionOrderAndDefaults(t *testing.T) {
	m := NewMeta()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	m.SetDefault("a", 99)
	m.SetDefault("c", "!OBS.dit")

	assert.Equal(t, []string{"b", "a", "c"}, m.Keys())

	p := NewProperties()
	p.Define("!OBS.dit", 10)
	got, err := m.Float(p, "c")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	n, err := m.Int(p, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	def, err := m.FloatOr(p, "absent", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, def)

	_, err = m.Float(p, "absent")
	assert.True(t, errors.Is(err, ErrMissingParameter))
}
