package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides_TypedValues(t *testing.T) {
	// GIVEN --set flags with int, float, string and list values
	values := []string{"!OBS.ndit=4", "!OBS.dit=2.5", "!OBS.filter_name=J", "!SIM.spectral.wave_range=[1, 2]"}

	// WHEN they are parsed
	got, err := parseOverrides(values)

	// THEN each value keeps its YAML type
	require.NoError(t, err)
	assert.Equal(t, 4, got["!OBS.ndit"])
	assert.Equal(t, 2.5, got["!OBS.dit"])
	assert.Equal(t, "J", got["!OBS.filter_name"])
	assert.Equal(t, []any{1, 2}, got["!SIM.spectral.wave_range"])
}

func TestParseOverrides_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"missing equals", "!OBS.dit"},
		{"missing bang", "OBS.dit=3"},
		{"bad yaml", "!OBS.dit=[1,"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseOverrides([]string{tc.value})
			assert.Error(t, err)
		})
	}
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"], "run must be registered")
	assert.True(t, names["effects"], "effects must be registered")
}
