package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	sim "github.com/opticsim/opticsim/sim"
)

func TestWriteEffectsTable(t *testing.T) {
	rows := []sim.EffectRow{
		{Element: "telescope", Name: "mirror", Class: "TERCurve", Included: true, ZOrders: []int{100}},
		{Element: "detector", Name: "chips", Class: "DetectorList", Included: false, ZOrders: []int{90, 390, 490}},
	}
	var buf bytes.Buffer
	writeEffectsTable(&buf, rows)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ELEMENT")
	assert.Contains(t, lines[1], "TERCurve")
	assert.Contains(t, lines[2], "90,390,490")
	assert.Contains(t, lines[2], "false")
}
