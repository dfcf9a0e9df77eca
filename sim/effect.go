package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Effect is one configurable unit of physical transformation.
// Concrete effects embed EffectBase and implement one or more stage interfaces below;
// which interfaces a type implements decides the stages it may legally be placed in.
type Effect interface {
	Base() *EffectBase
}

// FOVSetupEffect partitions or constrains the observation volumes before FOVs are cut.
type FOVSetupEffect interface {
	Effect
	ApplyToVolumes(cfg Config, vols []Volume) ([]Volume, error)
}

// SurfaceListEffect contributes a table of optical surfaces to the surfaces table.
type SurfaceListEffect interface {
	Effect
	SurfaceTable(cfg Config) (*SurfaceTable, error)
}

// SurfaceCurveEffect contributes one surface (a transmission/emission curve).
type SurfaceCurveEffect interface {
	Effect
	Surface(cfg Config) (Surface, error)
}

// ImagePlaneSetupEffect defines the geometry of one image plane.
type ImagePlaneSetupEffect interface {
	Effect
	ImagePlaneHeader(cfg Config) (ImagePlaneHeader, error)
}

// DetectorGeometry describes the detector chips read out from one image plane.
type DetectorGeometry interface {
	ImagePlaneSetupEffect
	DetectorHeaders(cfg Config) ([]DetectorHeader, error)
}

// SourceEffect transforms the source before FOV extraction.
type SourceEffect interface {
	Effect
	ApplyToSource(cfg Config, src *Source) (*Source, error)
}

// FOVEffect transforms one extracted field of view.
type FOVEffect interface {
	Effect
	ApplyToFOV(cfg Config, fov *FieldOfView) (*FieldOfView, error)
}

// ImagePlaneEffect transforms an accumulated image plane.
type ImagePlaneEffect interface {
	Effect
	ApplyToImagePlane(cfg Config, ip *ImagePlane) (*ImagePlane, error)
}

// DetectorEffect transforms one detector chip during readout.
type DetectorEffect interface {
	Effect
	ApplyToDetector(cfg Config, det *Detector) (*Detector, error)
}

// SpectralTracer marks effects that disperse light onto spectral traces.
type SpectralTracer interface {
	FOVSetupEffect
	TraceCount(cfg Config) (int, error)
}

// ApertureEffect marks effects that define a slit or aperture on the sky.
type ApertureEffect interface {
	FOVSetupEffect
	Aperture(cfg Config) (SkyBox, error)
}

// SupportsStage reports whether e's type can be applied at stage s.
func SupportsStage(e Effect, s Stage) bool {
	switch s {
	case StageFOVSetup:
		_, ok := e.(FOVSetupEffect)
		return ok
	case StageSurfaces:
		_, list := e.(SurfaceListEffect)
		_, curve := e.(SurfaceCurveEffect)
		return list || curve
	case StageImagePlaneSetup:
		_, ok := e.(ImagePlaneSetupEffect)
		return ok
	case StageDetectorSetup:
		_, ok := e.(DetectorGeometry)
		return ok
	case StageSource:
		_, ok := e.(SourceEffect)
		return ok
	case StageFOV:
		_, ok := e.(FOVEffect)
		return ok
	case StageImagePlane:
		_, ok := e.(ImagePlaneEffect)
		return ok
	case StageDetector:
		_, ok := e.(DetectorEffect)
		return ok
	}
	return false
}

// EffectBase carries the identity and metadata shared by all effects.
type EffectBase struct {
	name    string
	class   string
	zOrders []int
	stages  []Stage
	include Value
	meta    *Meta
	version uint64
}

// NewEffectBase builds the base from constructor parameters. "name", "include" and
// "z_order" are taken from params when present; defaultZ applies otherwise. Every
// parameter is also recorded as metadata.
func NewEffectBase(params map[string]any, defaultZ ...int) (EffectBase, error) {
	b := EffectBase{
		include: Literal(true),
		meta:    NewMeta(),
	}
	for _, k := range sortedKeys(params) {
		b.meta.Set(k, params[k])
	}
	if name, ok := params["name"]; ok {
		b.name = fmt.Sprint(name)
	}
	if inc, ok := params["include"]; ok {
		b.include = ParseValue(inc)
	}
	zs := defaultZ
	if raw, ok := params["z_order"]; ok {
		parsed, err := ToInts(raw)
		if err != nil {
			return EffectBase{}, fmt.Errorf("%w: %v", ErrInvalidZOrder, err)
		}
		zs = parsed
	}
	if err := b.setZOrders(zs); err != nil {
		return EffectBase{}, err
	}
	return b, nil
}

func (b *EffectBase) setZOrders(zs []int) error {
	stages, err := StagesForZOrders(zs)
	if err != nil {
		return err
	}
	b.zOrders = append([]int(nil), zs...)
	b.stages = stages
	b.meta.Set("z_order", append([]int(nil), zs...))
	return nil
}

// Base implements Effect.
func (b *EffectBase) Base() *EffectBase { return b }

func (b *EffectBase) Name() string    { return b.name }
func (b *EffectBase) Class() string   { return b.class }
func (b *EffectBase) ZOrders() []int  { return append([]int(nil), b.zOrders...) }
func (b *EffectBase) Stages() []Stage { return append([]Stage(nil), b.stages...) }
func (b *EffectBase) Meta() *Meta     { return b.meta }

// Version increments on every metadata update; caches keyed on effects compare it.
func (b *EffectBase) Version() uint64 { return b.version }

// InStage reports whether the effect is placed in stage s.
func (b *EffectBase) InStage(s Stage) bool {
	for _, st := range b.stages {
		if st == s {
			return true
		}
	}
	return false
}

// IncludeValue returns the raw include flag (possibly a reference).
func (b *EffectBase) IncludeValue() Value { return b.include }

// Included resolves the include flag against cfg. Unresolvable flags exclude the effect.
func (b *EffectBase) Included(cfg Config) bool {
	raw, err := b.include.Resolve(cfg)
	if err != nil {
		logrus.Warnf("effect %q: cannot resolve include flag: %v; treating as excluded", b.name, err)
		return false
	}
	inc, err := ToBool(raw)
	if err != nil {
		logrus.Warnf("effect %q: include flag %v: %v; treating as excluded", b.name, raw, err)
		return false
	}
	return inc
}

// SetInclude sets the include flag.
func (b *EffectBase) SetInclude(include bool) {
	b.include = Literal(include)
	b.meta.Set("include", include)
	b.version++
}

// Update applies metadata updates in place. "include" and "z_order" change pipeline
// placement; "name" cannot be changed after construction.
func (b *EffectBase) Update(updates map[string]any) error {
	for _, k := range sortedKeys(updates) {
		v := updates[k]
		switch k {
		case "name":
			if fmt.Sprint(v) != b.name {
				logrus.Warnf("effect %q: cannot rename to %v; ignoring", b.name, v)
			}
			continue
		case "include":
			b.include = ParseValue(v)
		case "z_order":
			zs, err := ToInts(v)
			if err != nil {
				return fmt.Errorf("effect %q: %w: %v", b.name, ErrInvalidZOrder, err)
			}
			if err := b.setZOrders(zs); err != nil {
				return fmt.Errorf("effect %q: %w", b.name, err)
			}
			continue
		}
		b.meta.Set(k, v)
	}
	b.version++
	return nil
}

// validateStages checks e's type against every stage its z-orders place it in.
func validateStages(e Effect) error {
	b := e.Base()
	for _, s := range b.stages {
		if !SupportsStage(e, s) {
			return fmt.Errorf("%w: %s (%s) cannot run at %s", ErrStageMismatch, b.name, b.class, s)
		}
	}
	return nil
}
