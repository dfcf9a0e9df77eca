package effects

import (
	"fmt"
	"math"
	"strconv"

	"github.com/opticsim/opticsim/sim"
	"github.com/opticsim/opticsim/sim/table"
)

var detectorColumns = []string{"id", "x_cen", "y_cen", "xhw", "yhw", "angle", "gain", "pixsize"}

// DetectorList describes the detector chips on one image plane as a table with columns
// id, x_cen, y_cen, xhw, yhw, angle, gain, pixsize (mm, degrees, e-/ADU). The table
// comes from "filename" or an inline "array_dict" mapping of column to values.
//
// "active_detectors" is "all" or a list of ids. It is evaluated on every call, so
// changing it between readouts changes which chips are read out.
type DetectorList struct {
	sim.EffectBase
	table *table.Table
}

// NewDetectorList constructs a DetectorList.
func NewDetectorList(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 90, 390, 490)
	if err != nil {
		return nil, err
	}
	b.Meta().SetDefault("pixel_scale", sim.KeyPixelScale)
	b.Meta().SetDefault("active_detectors", "all")
	b.Meta().SetDefault("image_plane_id", 0)

	var tbl *table.Table
	switch {
	case b.Meta().Has("filename"):
		path, err := b.Meta().Text(cfg, "filename")
		if err != nil {
			return nil, err
		}
		if tbl, err = table.ReadFile(path); err != nil {
			return nil, err
		}
	case b.Meta().Has("array_dict"):
		raw, err := b.Meta().Resolve(cfg, "array_dict")
		if err != nil {
			return nil, err
		}
		if tbl, err = tableFromArrayDict(raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: DetectorList needs filename or array_dict", sim.ErrMissingParameter)
	}
	return newDetectorList(b, tbl)
}

func newDetectorList(b sim.EffectBase, tbl *table.Table) (*DetectorList, error) {
	for _, col := range []string{"id", "x_cen", "y_cen", "xhw", "yhw", "pixsize"} {
		if !tbl.Has(col) {
			return nil, fmt.Errorf("%w: detector table column %q", sim.ErrMissingParameter, col)
		}
	}
	if tbl.Len() == 0 {
		return nil, fmt.Errorf("%w: detector table has no rows", sim.ErrMissingParameter)
	}
	return &DetectorList{EffectBase: b, table: tbl}, nil
}

func tableFromArrayDict(raw any) (*table.Table, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("array_dict must be a mapping, got %T", raw)
	}
	cols := make(map[string][]string, len(m))
	var order []string
	for _, name := range detectorColumns {
		if _, ok := m[name]; ok {
			order = append(order, name)
		}
	}
	for name, v := range m {
		vals, err := sim.ToFloats(v)
		if err != nil {
			return nil, fmt.Errorf("array_dict column %q: %w", name, err)
		}
		cells := make([]string, len(vals))
		for i, f := range vals {
			cells[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		cols[name] = cells
	}
	return table.FromColumns(cols, order)
}

// allHeaders returns one header per table row.
func (e *DetectorList) allHeaders(cfg sim.Config) ([]sim.DetectorHeader, error) {
	ipID, err := e.Meta().Int(cfg, "image_plane_id")
	if err != nil {
		return nil, err
	}
	ids, err := e.table.Ints("id")
	if err != nil {
		return nil, err
	}
	cols := make(map[string][]float64)
	for _, name := range []string{"x_cen", "y_cen", "xhw", "yhw", "pixsize"} {
		if cols[name], err = e.table.Floats(name); err != nil {
			return nil, err
		}
	}
	if cols["angle"], err = e.table.FloatsOr("angle", 0); err != nil {
		return nil, err
	}
	if cols["gain"], err = e.table.FloatsOr("gain", 1); err != nil {
		return nil, err
	}
	headers := make([]sim.DetectorHeader, len(ids))
	for i, id := range ids {
		headers[i] = sim.DetectorHeader{
			ID:           id,
			XCen:         cols["x_cen"][i],
			YCen:         cols["y_cen"][i],
			XHW:          cols["xhw"][i],
			YHW:          cols["yhw"][i],
			Angle:        cols["angle"][i],
			Gain:         cols["gain"][i],
			PixelSize:    cols["pixsize"][i],
			ImagePlaneID: ipID,
		}
	}
	return headers, nil
}

// DetectorHeaders implements sim.DetectorGeometry. Only active detectors are returned.
func (e *DetectorList) DetectorHeaders(cfg sim.Config) ([]sim.DetectorHeader, error) {
	all, err := e.allHeaders(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := e.Meta().Resolve(cfg, "active_detectors")
	if err != nil {
		return nil, err
	}
	if s, ok := raw.(string); ok && s == "all" {
		return all, nil
	}
	ids, err := sim.ToInts(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: active_detectors must be \"all\" or a list of ids: %w", e.Name(), err)
	}
	active := make(map[int]bool, len(ids))
	for _, id := range ids {
		active[id] = true
	}
	var out []sim.DetectorHeader
	for _, h := range all {
		if active[h.ID] {
			out = append(out, h)
		}
	}
	return out, nil
}

// footprint returns the mm extent of the active chips including their rotation.
func (e *DetectorList) footprint(cfg sim.Config) (xMin, xMax, yMin, yMax, pixelSize float64, err error) {
	headers, err := e.DetectorHeaders(cfg)
	if err != nil {
		return 0, 0, 0, 0, 0, err
	}
	if len(headers) == 0 {
		return 0, 0, 0, 0, 0, fmt.Errorf("%s: no active detectors", e.Name())
	}
	xMin, yMin = math.Inf(1), math.Inf(1)
	xMax, yMax = math.Inf(-1), math.Inf(-1)
	pixelSize = math.Inf(1)
	for _, h := range headers {
		s, c := math.Sincos(h.Angle * math.Pi / 180)
		for _, corner := range [][2]float64{{-h.XHW, -h.YHW}, {h.XHW, -h.YHW}, {h.XHW, h.YHW}, {-h.XHW, h.YHW}} {
			x := h.XCen + c*corner[0] - s*corner[1]
			y := h.YCen + s*corner[0] + c*corner[1]
			xMin, xMax = math.Min(xMin, x), math.Max(xMax, x)
			yMin, yMax = math.Min(yMin, y), math.Max(yMax, y)
		}
		pixelSize = math.Min(pixelSize, h.PixelSize)
	}
	return xMin, xMax, yMin, yMax, pixelSize, nil
}

// ImagePlaneHeader implements sim.ImagePlaneSetupEffect: the smallest grid at the
// finest chip pixel size covering every active chip.
func (e *DetectorList) ImagePlaneHeader(cfg sim.Config) (sim.ImagePlaneHeader, error) {
	xMin, xMax, yMin, yMax, pixelSize, err := e.footprint(cfg)
	if err != nil {
		return sim.ImagePlaneHeader{}, err
	}
	pixelScale, err := e.Meta().Float(cfg, "pixel_scale")
	if err != nil {
		return sim.ImagePlaneHeader{}, err
	}
	ipID, err := e.Meta().Int(cfg, "image_plane_id")
	if err != nil {
		return sim.ImagePlaneHeader{}, err
	}
	return sim.HeaderFromBounds(ipID, xMin, xMax, yMin, yMax, pixelSize, pixelScale), nil
}

// ApplyToVolumes implements sim.FOVSetupEffect: volumes on this list's image plane are
// restricted to the pixels the active chips cover.
func (e *DetectorList) ApplyToVolumes(cfg sim.Config, vols []sim.Volume) ([]sim.Volume, error) {
	xMin, xMax, yMin, yMax, _, err := e.footprint(cfg)
	if err != nil {
		return nil, err
	}
	ipID, err := e.Meta().Int(cfg, "image_plane_id")
	if err != nil {
		return nil, err
	}
	out := vols[:0:0]
	for _, v := range vols {
		if v.ImagePlaneID() != ipID {
			out = append(out, v)
			continue
		}
		eps := v.Header.PixelSize * 1e-6
		i0, j0 := v.Header.PixelOfMM(xMin+eps, yMin+eps)
		i1, j1 := v.Header.PixelOfMM(xMax-eps, yMax-eps)
		v.X0, v.X1 = max(v.X0, i0), min(v.X1, i1+1)
		v.Y0, v.Y1 = max(v.Y0, j0), min(v.Y1, j1+1)
		if !v.Empty() {
			out = append(out, v)
		}
	}
	return out, nil
}

// DetectorWindow is a single rectangular chip given directly by "pixel_size", "x", "y",
// "width" and optional "height", "angle" and "gain" (mm, degrees, e-/ADU).
type DetectorWindow struct {
	DetectorList
}

// NewDetectorWindow constructs a DetectorWindow on image plane 0 unless configured.
func NewDetectorWindow(params map[string]any, cfg sim.Config) (sim.Effect, error) {
	b, err := sim.NewEffectBase(params, 90, 390, 490)
	if err != nil {
		return nil, err
	}
	m := b.Meta()
	m.SetDefault("pixel_scale", sim.KeyPixelScale)
	m.SetDefault("active_detectors", "all")
	m.SetDefault("image_plane_id", 0)
	m.SetDefault("angle", 0.0)
	m.SetDefault("gain", 1.0)

	vals := make(map[string]float64)
	for _, k := range []string{"pixel_size", "x", "y", "width", "angle", "gain"} {
		if vals[k], err = m.Float(cfg, k); err != nil {
			return nil, err
		}
	}
	vals["height"], err = m.FloatOr(cfg, "height", vals["width"])
	if err != nil {
		return nil, err
	}
	cell := func(f float64) []string { return []string{strconv.FormatFloat(f, 'g', -1, 64)} }
	tbl, err := table.FromColumns(map[string][]string{
		"id":      {"0"},
		"x_cen":   cell(vals["x"]),
		"y_cen":   cell(vals["y"]),
		"xhw":     cell(vals["width"] / 2),
		"yhw":     cell(vals["height"] / 2),
		"angle":   cell(vals["angle"]),
		"gain":    cell(vals["gain"]),
		"pixsize": cell(vals["pixel_size"]),
	}, detectorColumns)
	if err != nil {
		return nil, err
	}
	dl, err := newDetectorList(b, tbl)
	if err != nil {
		return nil, err
	}
	return &DetectorWindow{DetectorList: *dl}, nil
}
