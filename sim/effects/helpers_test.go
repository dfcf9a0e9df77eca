package effects

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opticsim/opticsim/sim"
)

// newConfig returns the properties the effects in this package resolve by default.
func newConfig() *sim.Properties {
	p := sim.NewProperties()
	p.Define(sim.KeyPixelScale, 0.2)
	p.Define(sim.KeyWaveMin, 0.5)
	p.Define(sim.KeyWaveMax, 2.5)
	p.Define(sim.KeyDIT, 10.0)
	p.Define(sim.KeyNDIT, 2)
	p.Define("!OBS.airmass", 1.0)
	p.Define(sim.KeyFilterName, "J")
	p.Define("!DET.dark_current", 0.5)
	p.Define("!DET.readout_noise", 3.0)
	return p
}

func makeEffect(t *testing.T, class string, kwargs map[string]any, cfg sim.Config) sim.Effect {
	t.Helper()
	e, err := sim.MakeEffect(sim.EffectRecord{Class: class, Kwargs: kwargs, Meta: map[string]any{"name": "under_test"}}, cfg, nil)
	require.NoError(t, err)
	return e
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
