package sim

import (
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperties_DefineLookupNested(t *testing.T) {
	p := NewProperties()
	p.Define("!SIM.spectral.wave_min", 0.7)

	v, ok := p.Lookup("!SIM.spectral.wave_min")
	require.True(t, ok)
	assert.Equal(t, 0.7, v)

	sec, ok := p.Lookup("!SIM.spectral")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"wave_min": 0.7}, sec)

	_, ok = p.Lookup("!SIM.spectral.wave_max")
	assert.False(t, ok)
	_, ok = p.Lookup("malformed")
	assert.False(t, ok)
}

func TestProperties_SetUnknownKeyWarnsAndIgnores(t *testing.T) {
	// GIVEN a store with !OBS.dit
	hook := logtest.NewGlobal()
	defer hook.Reset()
	p := NewProperties()
	p.Define("!OBS.dit", 60)
	gen := p.Generation()

	// WHEN an unknown key is set
	ok := p.Set("!OBS.ditt", 10)

	// THEN nothing is written and a warning names the key
	assert.False(t, ok)
	assert.Equal(t, gen, p.Generation())
	_, exists := p.Lookup("!OBS.ditt")
	assert.False(t, exists)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "!OBS.ditt")

	// AND a known key is overwritten
	assert.True(t, p.Set("!OBS.dit", 10))
	v, _ := p.Lookup("!OBS.dit")
	assert.Equal(t, 10, v)
	assert.Greater(t, p.Generation(), gen)
}

func TestProperties_MergeAndUpdate(t *testing.T) {
	p := NewProperties()
	p.Merge("SIM", map[string]any{"spectral": map[string]any{"wave_min": 0.3, "wave_max": 2.5}})
	p.Merge("SIM", map[string]any{"spectral": map[string]any{"wave_max": 2.2}, "random": map[string]any{"seed": 1}})

	wMin, _ := p.Lookup("!SIM.spectral.wave_min")
	wMax, _ := p.Lookup("!SIM.spectral.wave_max")
	seed, _ := p.Lookup("!SIM.random.seed")
	assert.Equal(t, 0.3, wMin, "merge must keep sibling keys")
	assert.Equal(t, 2.2, wMax)
	assert.Equal(t, 1, seed)

	hook := logtest.NewGlobal()
	defer hook.Reset()
	p.Update(map[string]any{
		"!SIM.random.seed": 7,
		"SIM":              map[string]any{"spectral": map[string]any{"wave_min": 0.5, "typo": 1}},
	})
	seed, _ = p.Lookup("!SIM.random.seed")
	wMin, _ = p.Lookup("!SIM.spectral.wave_min")
	assert.Equal(t, 7, seed)
	assert.Equal(t, 0.5, wMin)
	_, ok := p.Lookup("!SIM.spectral.typo")
	assert.False(t, ok, "unknown nested keys must not be created")
	assert.NotEmpty(t, hook.Entries)
}

func TestProperties_CloneIsIndependent(t *testing.T) {
	p := NewProperties()
	p.Define("!OBS.modes", "imaging")
	p.Define("!SIM.spectral.wave_min", 0.5)
	c := p.Clone()
	c.Define("!SIM.spectral.wave_min", 1.0)

	v, _ := p.Lookup("!SIM.spectral.wave_min")
	assert.Equal(t, 0.5, v)
	assert.Equal(t, []string{"OBS", "SIM"}, c.Sections())
}

func TestLookupHelpers(t *testing.T) {
	p := NewProperties()
	p.Define("!INST.pixel_scale", "!INST.base_scale")
	p.Define("!INST.base_scale", 0.004)
	p.Define("!SIM.computing.chunk_size", 512)

	f, err := LookupFloat(p, "!INST.pixel_scale")
	require.NoError(t, err)
	assert.Equal(t, 0.004, f)

	f, err = LookupFloatOr(p, "!TEL.area", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	n, err := LookupIntOr(p, KeyChunkSize, defaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, 512, n)

	_, err = LookupFloat(p, "!TEL.area")
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestProperties_ReplaceKeepsGenerationIncreasing(t *testing.T) {
	p := NewProperties()
	p.Define("!INST.pixel_scale", 0.4)
	p.Define("!INST.wide_only", true)
	gen := p.Generation()

	next := NewProperties()
	next.Define("!INST.pixel_scale", 0.2)
	p.Replace(next)

	v, _ := p.Lookup("!INST.pixel_scale")
	assert.Equal(t, 0.2, v)
	_, ok := p.Lookup("!INST.wide_only")
	assert.False(t, ok)
	assert.Greater(t, p.Generation(), gen)

	// the replacement is a copy
	next.Define("!INST.pixel_scale", 9.0)
	v, _ = p.Lookup("!INST.pixel_scale")
	assert.Equal(t, 0.2, v)
}
