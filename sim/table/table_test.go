package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detectorTable = `# x_cen_unit : mm
# pixsize_unit : mm
#
# two chips side by side
id   x_cen   y_cen   xhw    yhw    angle   gain   pixsize
0    -15.0   0.0     10.24  10.24  0.0     1.0    0.015

1    15.0    0.0     10.24  10.24  0.0     2.0    0.015
`

func TestParse_DetectorTable_ColumnsRowsAndMeta(t *testing.T) {
	// GIVEN a detector layout table with metadata comments and a blank line
	tbl, err := Parse(detectorTable)

	// THEN columns, rows and metadata are read
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "x_cen", "y_cen", "xhw", "yhw", "angle", "gain", "pixsize"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "mm", tbl.Meta["x_cen_unit"])
	assert.Len(t, tbl.Meta, 2)

	ids, err := tbl.Ints("id")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids)

	gain, err := tbl.Floats("gain")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, gain)
}

func TestParse_RaggedRow_Fails(t *testing.T) {
	_, err := Parse("a b\n1 2\n3\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParse_NoHeader_Fails(t *testing.T) {
	_, err := Parse("# only comments\n")
	assert.Error(t, err)
}

func TestTable_MissingColumn(t *testing.T) {
	tbl, err := Parse("wavelength transmission\n1.0 0.5\n")
	require.NoError(t, err)

	_, err = tbl.Floats("emission")
	assert.Error(t, err)

	// FloatsOr fills absent columns with the default
	em, err := tbl.FloatsOr("emission", 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, em)
}

func TestFromColumns_OrderAndLengthCheck(t *testing.T) {
	tbl, err := FromColumns(map[string][]string{
		"id":    {"0", "1"},
		"x_cen": {"-1", "1"},
	}, []string{"id", "x_cen"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"0", "-1"}, {"1", "1"}}, tbl.Rows)

	_, err = FromColumns(map[string][]string{"a": {"1"}, "b": {"1", "2"}}, nil)
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detectors.dat")
	require.NoError(t, os.WriteFile(path, []byte(detectorTable), 0o644))

	tbl, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}
