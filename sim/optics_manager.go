package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// OpticsManager owns the ordered optical elements and answers which effects run in
// which pipeline stage. The combined surfaces table is synthesized on demand and
// appended to the stages that need it.
type OpticsManager struct {
	elements   []*OpticalElement
	cfg        Config
	meta       map[string]any
	generation uint64

	surfaces    *SurfaceTable
	surfacesKey surfacesKey
}

type effectStamp struct {
	effect  Effect
	version uint64
}

// surfacesKey identifies the inputs the cached surfaces table was built from.
type surfacesKey struct {
	generation uint64
	cfg        uint64
	effects    []effectStamp
}

func (k surfacesKey) equal(o surfacesKey) bool {
	if k.generation != o.generation || k.cfg != o.cfg || len(k.effects) != len(o.effects) {
		return false
	}
	for i := range k.effects {
		if k.effects[i] != o.effects[i] {
			return false
		}
	}
	return true
}

// EffectRow is one line of the effects listing.
type EffectRow struct {
	Element  string
	Name     string
	Class    string
	Included bool
	ZOrders  []int
}

// Match is the result of a name lookup: an element, or an effect and its element.
type Match struct {
	Element *OpticalElement
	Effect  Effect
}

// NewOpticsManager builds one OpticalElement per document that lists effects, then
// derives the telescope area and etendue into cfg.
func NewOpticsManager(docs []Document, cfg Config, overrides map[string]any) (*OpticsManager, error) {
	m := &OpticsManager{cfg: cfg, meta: make(map[string]any)}
	if err := m.LoadEffects(docs, overrides); err != nil {
		return nil, err
	}
	if err := m.SetDerivedParameters(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadEffects appends an element for every document carrying an effects list.
func (m *OpticsManager) LoadEffects(docs []Document, overrides map[string]any) error {
	for i, doc := range docs {
		if doc.Effects == nil {
			continue
		}
		if doc.ElementName() == "" {
			doc.Name = fmt.Sprintf("element_%d", i)
		}
		oe, err := NewOpticalElement(doc, m.cfg, overrides)
		if err != nil {
			return err
		}
		m.elements = append(m.elements, oe)
		logrus.Debugf("loaded optical element %q with %d effects", oe.Name, len(oe.effects))
	}
	m.generation++
	return nil
}

// AddEffect appends e to the element at index element.
func (m *OpticsManager) AddEffect(e Effect, element int) error {
	if element < 0 || element >= len(m.elements) {
		return fmt.Errorf("%w: optical element %d of %d", ErrNotFound, element, len(m.elements))
	}
	if err := m.elements[element].AddEffect(e); err != nil {
		return err
	}
	m.generation++
	return nil
}

// AddElement appends an empty element and returns its index.
func (m *OpticsManager) AddElement(name string) int {
	m.elements = append(m.elements, &OpticalElement{Name: name})
	m.generation++
	return len(m.elements) - 1
}

// SetDerivedParameters defines "!TEL.area" and "!TEL.etendue" from the surfaces table
// and "!INST.pixel_scale".
func (m *OpticsManager) SetDerivedParameters() error {
	pixelScale, err := LookupFloat(m.cfg, KeyPixelScale)
	if err != nil {
		return fmt.Errorf("derived parameters: %w", err)
	}
	tbl, err := m.SurfacesTable()
	if err != nil {
		return err
	}
	area := tbl.Area()
	if area <= 0 {
		if _, ok := m.cfg.Lookup(KeyTelescopeArea); !ok {
			return fmt.Errorf("derived parameters: %w: no surface defines a collecting area and %s is unset", ErrMissingParameter, KeyTelescopeArea)
		}
		area, err = LookupFloat(m.cfg, KeyTelescopeArea)
		if err != nil {
			return fmt.Errorf("derived parameters: %w", err)
		}
	}
	etendue := area * pixelScale * pixelScale
	m.cfg.Define(KeyTelescopeArea, area)
	m.cfg.Define(KeyEtendue, etendue)
	m.meta["area"] = area
	m.meta["pixel_scale"] = pixelScale
	m.meta["etendue"] = etendue
	return nil
}

// Update merges entries into the manager's own metadata.
func (m *OpticsManager) Update(meta map[string]any) {
	for k, v := range meta {
		m.meta[k] = v
	}
}

// Meta returns a copy of the manager's metadata.
func (m *OpticsManager) Meta() map[string]any {
	return copyMap(m.meta)
}

// Config returns the configuration context effects resolve against.
func (m *OpticsManager) Config() Config { return m.cfg }

// Elements returns the optical elements in load order.
func (m *OpticsManager) Elements() []*OpticalElement {
	return append([]*OpticalElement(nil), m.elements...)
}

// Element returns the element at index i.
func (m *OpticsManager) Element(i int) (*OpticalElement, error) {
	if i < 0 || i >= len(m.elements) {
		return nil, fmt.Errorf("%w: optical element %d of %d", ErrNotFound, i, len(m.elements))
	}
	return m.elements[i], nil
}

// EffectsIn returns the included effects placed in stage, in element order then
// insertion order. The surfaces table is not part of this list.
func (m *OpticsManager) EffectsIn(stage Stage) []Effect {
	var out []Effect
	for _, oe := range m.elements {
		out = append(out, oe.EffectsIn(stage, m.cfg)...)
	}
	return out
}

// ZOrderEffects returns the included effects with a z-order in [band, band+100), in
// element order then insertion order.
func (m *OpticsManager) ZOrderEffects(band int) ([]Effect, error) {
	if _, err := StageForZOrder(band); err != nil {
		return nil, err
	}
	var out []Effect
	for _, oe := range m.elements {
		for _, e := range oe.effects {
			b := e.Base()
			if inBand(b.zOrders, band) && b.Included(m.cfg) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func inBand(zs []int, band int) bool {
	for _, z := range zs {
		if z >= band && z < band+100 {
			return true
		}
	}
	return false
}

func (m *OpticsManager) allEffects() []Effect {
	var out []Effect
	for _, oe := range m.elements {
		out = append(out, oe.effects...)
	}
	return out
}

// IsSpectroscope reports whether the system disperses light: some effect traces spectra
// and some effect defines an aperture. Include flags are not consulted.
func (m *OpticsManager) IsSpectroscope() bool {
	var tracer, aperture bool
	for _, e := range m.allEffects() {
		if _, ok := e.(SpectralTracer); ok {
			tracer = true
		}
		if _, ok := e.(ApertureEffect); ok {
			aperture = true
		}
	}
	return tracer && aperture
}

// SurfacesTable returns the combined surfaces table, rebuilding it only when the
// elements, the configuration or any included surface effect changed.
func (m *OpticsManager) SurfacesTable() (*SurfaceTable, error) {
	effects := m.EffectsIn(StageSurfaces)
	key := surfacesKey{generation: m.generation, cfg: m.cfg.Generation()}
	for _, e := range effects {
		key.effects = append(key.effects, effectStamp{effect: e, version: e.Base().Version()})
	}
	if m.surfaces != nil && key.equal(m.surfacesKey) {
		return m.surfaces, nil
	}
	tbl, err := CombineSurfaceEffects(effects, m.cfg)
	if err != nil {
		return nil, err
	}
	m.surfaces = tbl
	m.surfacesKey = key
	logrus.Debugf("rebuilt surfaces table from %d effects (%d surfaces)", len(effects), len(tbl.Surfaces))
	return tbl, nil
}

// withSurfaces returns the stage's effects with the surfaces table appended.
func (m *OpticsManager) withSurfaces(stage Stage) ([]Effect, error) {
	effects := m.EffectsIn(stage)
	tbl, err := m.SurfacesTable()
	if err != nil {
		return nil, err
	}
	return append(effects, tbl), nil
}

// FOVSetupEffects returns the FOV-setup band followed by the surfaces table, which
// clips every volume to the throughput's wavelength limits.
func (m *OpticsManager) FOVSetupEffects() ([]Effect, error) {
	return m.withSurfaces(StageFOVSetup)
}

// ImagePlaneSetupEffects returns the effects defining image plane geometry.
func (m *OpticsManager) ImagePlaneSetupEffects() []Effect {
	return m.EffectsIn(StageImagePlaneSetup)
}

// DetectorSetupEffects returns the effects defining detector arrays.
func (m *OpticsManager) DetectorSetupEffects() []Effect {
	return m.EffectsIn(StageDetectorSetup)
}

// SourceEffects returns the source band followed by the surfaces table.
func (m *OpticsManager) SourceEffects() ([]Effect, error) {
	return m.withSurfaces(StageSource)
}

// FOVEffects returns the FOV band; spectroscopes add the background per FOV here.
func (m *OpticsManager) FOVEffects() ([]Effect, error) {
	if !m.IsSpectroscope() {
		return m.EffectsIn(StageFOV), nil
	}
	return m.withSurfaces(StageFOV)
}

// ImagePlaneEffects returns the image plane band; imagers add the background here.
func (m *OpticsManager) ImagePlaneEffects() ([]Effect, error) {
	if m.IsSpectroscope() {
		return m.EffectsIn(StageImagePlane), nil
	}
	return m.withSurfaces(StageImagePlane)
}

// DetectorEffects returns the detector band.
func (m *OpticsManager) DetectorEffects() []Effect {
	return m.EffectsIn(StageDetector)
}

// ImagePlaneHeaders evaluates the geometry of every image plane. Several setup effects
// may describe the same plane id; their extents are merged.
func (m *OpticsManager) ImagePlaneHeaders() ([]ImagePlaneHeader, error) {
	setup := m.ImagePlaneSetupEffects()
	if len(setup) == 0 || len(m.DetectorSetupEffects()) == 0 {
		return nil, ErrNoDetectorList
	}
	var headers []ImagePlaneHeader
	for _, e := range setup {
		ipe, ok := e.(ImagePlaneSetupEffect)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageImagePlaneSetup)
		}
		h, err := ipe.ImagePlaneHeader(m.cfg)
		if err != nil {
			return nil, fmt.Errorf("image plane setup effect %q: %w", e.Base().Name(), err)
		}
		headers = mergeHeader(headers, h)
	}
	return headers, nil
}

func mergeHeader(headers []ImagePlaneHeader, h ImagePlaneHeader) []ImagePlaneHeader {
	for i, existing := range headers {
		if existing.ID != h.ID {
			continue
		}
		if existing.PixelSize != h.PixelSize || existing.PixelScale != h.PixelScale {
			logrus.Warnf("image plane %d: conflicting pixel geometry; keeping the first definition", h.ID)
		}
		xMin := min(existing.XMin, h.XMin)
		yMin := min(existing.YMin, h.YMin)
		xMax := max(existing.XMin+float64(existing.Width)*existing.PixelSize, h.XMin+float64(h.Width)*h.PixelSize)
		yMax := max(existing.YMin+float64(existing.Height)*existing.PixelSize, h.YMin+float64(h.Height)*h.PixelSize)
		headers[i] = HeaderFromBounds(h.ID, xMin, xMax, yMin, yMax, existing.PixelSize, existing.PixelScale)
		return headers
	}
	return append(headers, h)
}

// ListEffects returns one row per effect, included or not, in element order.
func (m *OpticsManager) ListEffects() []EffectRow {
	var rows []EffectRow
	for _, oe := range m.elements {
		for _, e := range oe.effects {
			b := e.Base()
			rows = append(rows, EffectRow{
				Element:  oe.Name,
				Name:     b.Name(),
				Class:    b.Class(),
				Included: b.Included(m.cfg),
				ZOrders:  b.ZOrders(),
			})
		}
	}
	return rows
}

// Find returns every element or effect named name. Elements come first.
func (m *OpticsManager) Find(name string) []Match {
	var out []Match
	for _, oe := range m.elements {
		if oe.Name == name {
			out = append(out, Match{Element: oe})
		}
	}
	for _, oe := range m.elements {
		for _, e := range oe.Find(name) {
			out = append(out, Match{Element: oe, Effect: e})
		}
	}
	return out
}

// Get returns the element or effect named name. A name matching several objects is
// warned about and every match is returned.
func (m *OpticsManager) Get(name string) ([]Match, error) {
	matches := m.Find(name)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	case 1:
	default:
		logrus.Warnf("%q is ambiguous (found in %s); returning all %d matches", name, owners(matches), len(matches))
	}
	return matches, nil
}

func owners(matches []Match) string {
	names := make([]string, len(matches))
	for i, mt := range matches {
		names[i] = mt.Element.Name
	}
	return strings.Join(names, ", ")
}

// Set applies metadata updates to the effect named name. A name matching several
// objects is warned about and nothing is changed.
func (m *OpticsManager) Set(name string, updates map[string]any) error {
	matches := m.Find(name)
	switch len(matches) {
	case 0:
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	case 1:
	default:
		logrus.Warnf("%q is ambiguous (found in %s); nothing updated", name, owners(matches))
		return nil
	}
	match := matches[0]
	if match.Effect == nil {
		return fmt.Errorf("%q is an optical element; only effects accept metadata updates", name)
	}
	if raw, ok := updates["z_order"]; ok {
		if err := checkZOrders(match.Effect, raw); err != nil {
			return err
		}
	}
	if err := match.Effect.Base().Update(updates); err != nil {
		return err
	}
	m.generation++
	return nil
}

func checkZOrders(e Effect, raw any) error {
	zs, err := ToInts(raw)
	if err != nil {
		return fmt.Errorf("effect %q: %w: %v", e.Base().Name(), ErrInvalidZOrder, err)
	}
	stages, err := StagesForZOrders(zs)
	if err != nil {
		return fmt.Errorf("effect %q: %w", e.Base().Name(), err)
	}
	for _, s := range stages {
		if !SupportsStage(e, s) {
			return fmt.Errorf("%w: %s (%s) cannot run at %s", ErrStageMismatch, e.Base().Name(), e.Base().Class(), s)
		}
	}
	return nil
}

func (m *OpticsManager) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "OpticsManager with %d optical elements", len(m.elements))
	for i, oe := range m.elements {
		fmt.Fprintf(&sb, "\n  [%d] %s: %d effects", i, oe.Name, len(oe.effects))
	}
	return sb.String()
}
