package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opticsim/opticsim/sim"
)

const instrumentYAML = `object: instrument
name: imager
alias: INST
properties:
  pixel_scale: 0.2
effects:
- name: filter_wheel
  class: FilterCurve
  kwargs:
    filename_format: filters/{}.dat
mode_yamls:
- name: imaging
  alias: INST
  properties:
    slit: none
- name: spectroscopy
  alias: INST
  properties:
    slit: narrow
  effects:
  - name: slit
    class: ApertureMask
    kwargs:
      width: 0.5
---
object: detector
name: chips
alias: DET
properties:
  dark_current: 0.1
`

func TestNew_Defaults(t *testing.T) {
	uc := New()

	v, ok := uc.Lookup(sim.KeyWaveMin)
	require.True(t, ok)
	assert.Equal(t, 0.3, v)
	seed, ok := uc.Lookup(sim.KeyRandomSeed)
	assert.True(t, ok)
	assert.Nil(t, seed, "no seed means a random one per readout")
	modes, err := uc.ActiveModes()
	require.NoError(t, err)
	assert.Empty(t, modes)
}

func TestAddYAML_MultiDocument(t *testing.T) {
	// GIVEN two documents with properties under their aliases
	uc := New()

	// WHEN they are decoded
	require.NoError(t, uc.AddYAML(strings.NewReader(instrumentYAML), "/pkg"))

	// THEN properties are merged and modes are held back until selected
	ps, ok := uc.Lookup(sim.KeyPixelScale)
	require.True(t, ok)
	assert.Equal(t, 0.2, ps)
	dark, _ := uc.Lookup("!DET.dark_current")
	assert.Equal(t, 0.1, dark)
	assert.Equal(t, []string{"imaging", "spectroscopy"}, uc.AvailableModes())

	docs, err := uc.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "imager", docs[0].ElementName())
	assert.Nil(t, docs[0].ModeYAMLs)
	// relative file names are anchored at the file's directory
	assert.Equal(t, filepath.Join("/pkg", "filters/{}.dat"), docs[0].Effects[0].Kwargs["filename_format"])
}

func TestAddYAML_UnknownFieldFails(t *testing.T) {
	uc := New()
	err := uc.AddYAML(strings.NewReader("object: telescope\nnmae: typo\n"), "")
	assert.Error(t, err)
}

func TestSetModes(t *testing.T) {
	uc := New()
	require.NoError(t, uc.AddYAML(strings.NewReader(instrumentYAML), ""))

	// unknown modes are rejected without changing the selection
	err := uc.SetModes("imaging", "coronagraphy")
	assert.ErrorIs(t, err, sim.ErrNotFound)
	active, _ := uc.ActiveModes()
	assert.Empty(t, active)

	require.NoError(t, uc.SetModes("spectroscopy"))
	slit, _ := uc.Lookup("!INST.slit")
	assert.Equal(t, "narrow", slit)
	docs, err := uc.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "spectroscopy", docs[2].ElementName())
}

func TestUpdate_ModesOverrideSwitchesDocuments(t *testing.T) {
	uc := New()
	require.NoError(t, uc.AddYAML(strings.NewReader(instrumentYAML), ""))
	require.NoError(t, uc.SetModes("spectroscopy"))

	uc.Update(map[string]any{"OBS": map[string]any{"modes": []any{"imaging"}}})

	slit, _ := uc.Lookup("!INST.slit")
	assert.Equal(t, "none", slit)
	docs, err := uc.Documents()
	require.NoError(t, err)
	assert.Equal(t, "imaging", docs[len(docs)-1].ElementName())
}

func TestUpdate_UnknownModeFailsDocuments(t *testing.T) {
	uc := New()
	require.NoError(t, uc.AddYAML(strings.NewReader(instrumentYAML), ""))
	require.NoError(t, uc.SetModes("imaging"))

	uc.Update(map[string]any{sim.KeyModes: "nope"})

	_, err := uc.Documents()
	assert.ErrorIs(t, err, sim.ErrNotFound, "the bad selection surfaces when documents are requested")
}

func TestSelectFilter(t *testing.T) {
	uc := New()
	uc.SelectFilter("Ks")
	v, _ := uc.Lookup(sim.KeyFilterName)
	assert.Equal(t, "Ks", v)
}

func TestLoad_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.yaml")
	require.NoError(t, os.WriteFile(path, []byte(instrumentYAML), 0o644))

	uc, err := Load(path)
	require.NoError(t, err)
	docs, err := uc.Documents()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "filters/{}.dat"), docs[0].Effects[0].Kwargs["filename_format"])

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

const pixelScaleModesYAML = `object: instrument
name: imager
alias: INST
properties:
  pixel_scale: 0.2
mode_yamls:
- name: wide
  alias: INST
  properties:
    pixel_scale: 0.4
    wide_only: true
- name: narrow
  alias: INST
  properties:
    slit: narrow
`

func TestSetModes_DeselectedModeWithdrawsProperties(t *testing.T) {
	// GIVEN a base pixel scale of 0.2 and a "wide" mode that doubles it
	uc := New()
	require.NoError(t, uc.AddYAML(strings.NewReader(pixelScaleModesYAML), ""))
	scale := func() any {
		v, _ := uc.Lookup(sim.KeyPixelScale)
		return v
	}

	// WHEN wide is selected
	require.NoError(t, uc.SetModes("wide"))

	// THEN its properties apply
	assert.Equal(t, 0.4, scale())
	_, ok := uc.Lookup("!INST.wide_only")
	assert.True(t, ok)

	// WHEN another mode replaces it
	require.NoError(t, uc.SetModes("narrow"))

	// THEN wide's properties are gone and the base value is back
	assert.Equal(t, 0.2, scale())
	_, ok = uc.Lookup("!INST.wide_only")
	assert.False(t, ok)

	// AND clearing the selection keeps the base value
	require.NoError(t, uc.SetModes())
	assert.Equal(t, 0.2, scale())
	_, ok = uc.Lookup("!INST.slit")
	assert.False(t, ok)
}

func TestUpdate_OverridesSurviveModeSwitch(t *testing.T) {
	uc := New()
	require.NoError(t, uc.AddYAML(strings.NewReader(pixelScaleModesYAML), ""))
	require.NoError(t, uc.SetModes("wide"))
	gen := uc.Generation()

	// a caller override wins over the mode and outlives the switch
	uc.Update(map[string]any{sim.KeyPixelScale: 0.3, sim.KeyWaveMax: 2.0})
	uc.Update(map[string]any{sim.KeyModes: []any{"narrow"}})

	v, _ := uc.Lookup(sim.KeyPixelScale)
	assert.Equal(t, 0.3, v)
	v, _ = uc.Lookup(sim.KeyWaveMax)
	assert.Equal(t, 2.0, v)
	active, err := uc.ActiveModes()
	require.NoError(t, err)
	assert.Equal(t, []string{"narrow"}, active)
	assert.Greater(t, uc.Generation(), gen, "a rebuild counts as a write")
}
