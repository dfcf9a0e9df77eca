package sim

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opticsim/opticsim/sim/fits"
	"github.com/opticsim/opticsim/sim/trace"
)

// Commands is the configuration collaborator an OpticalTrain is built from: the
// configuration context plus the ordered documents of the active instrument modes.
type Commands interface {
	Config
	// Update applies user overrides ("!SEC.key" or section mappings).
	Update(overrides map[string]any)
	// Documents returns the documents of the base configuration and the active modes.
	Documents() ([]Document, error)
}

// Recorder receives pipeline telemetry. sim/metrics provides the Prometheus implementation.
type Recorder interface {
	EffectApplied(stage Stage, e Effect)
	StageDuration(stage Stage, d time.Duration)
	FOVProcessed()
	ObservationCompleted()
}

type nopRecorder struct{}

func (nopRecorder) EffectApplied(Stage, Effect)        {}
func (nopRecorder) StageDuration(Stage, time.Duration) {}
func (nopRecorder) FOVProcessed()                      {}
func (nopRecorder) ObservationCompleted()              {}

// State is the lifecycle position of an OpticalTrain.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateUpdated
	StateObserved
	StateReadOut
)

var stateNames = map[State]string{
	StateUnloaded: "unloaded",
	StateLoaded:   "loaded",
	StateUpdated:  "updated",
	StateObserved: "observed",
	StateReadOut:  "read-out",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures an OpticalTrain.
type Option func(*OpticalTrain)

// WithMetrics sends pipeline telemetry to r.
func WithMetrics(r Recorder) Option {
	return func(t *OpticalTrain) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithTrace records every effect application into pt.
func WithTrace(pt *trace.PipelineTrace) Option {
	return func(t *OpticalTrain) {
		t.trace = pt
	}
}

// WithFOVWorkers processes up to n FOVs concurrently. FOV effects must then be safe
// for concurrent use on distinct FOVs. Values below 2 keep the loop sequential.
func WithFOVWorkers(n int) Option {
	return func(t *OpticalTrain) {
		if n > 1 {
			t.workers = n
		}
	}
}

// ObserveOptions controls one Observe call.
type ObserveOptions struct {
	// Update rebuilds the FOV manager, image planes and detector arrays first.
	Update bool
	// Overrides are applied to the configuration before observing.
	Overrides map[string]any
}

// ReadoutOptions controls one Readout call.
type ReadoutOptions struct {
	// OutputPath writes each product to this path. With several detector arrays the
	// products after the first get "_<index>" before the extension.
	OutputPath string
	Overrides  map[string]any
}

// OpticalTrain drives an observation: source effects, then per-FOV extraction and FOV
// effects accumulating into image planes, then image plane effects; Readout applies the
// detector effects through each detector array.
//
// Stage effect lists are fetched at call time, so toggling an effect's include flag
// takes effect on the next call without rebuilding anything.
type OpticalTrain struct {
	cmds           Commands
	optics         *OpticsManager
	fovManager     *FOVManager
	headers        []ImagePlaneHeader
	imagePlanes    []*ImagePlane
	detectorArrays []*DetectorArray
	elementOf      map[Effect]string

	state         State
	observationID string

	recorder Recorder
	trace    *trace.PipelineTrace
	workers  int
}

// NewOpticalTrain loads cmds and runs the first Update. A nil cmds leaves the train
// unloaded until Load is called.
func NewOpticalTrain(cmds Commands, opts ...Option) (*OpticalTrain, error) {
	t := &OpticalTrain{recorder: nopRecorder{}, workers: 1}
	for _, opt := range opts {
		opt(t)
	}
	if cmds == nil {
		return t, nil
	}
	if err := t.Load(cmds); err != nil {
		return nil, err
	}
	if err := t.Update(nil); err != nil {
		return nil, err
	}
	return t, nil
}

// Load (re)builds the optics manager from the documents cmds currently selects.
// Everything derived from a previous load is discarded.
func (t *OpticalTrain) Load(cmds Commands) error {
	docs, err := cmds.Documents()
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	optics, err := NewOpticsManager(docs, cmds, nil)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	t.cmds = cmds
	t.optics = optics
	t.fovManager = nil
	t.headers = nil
	t.imagePlanes = nil
	t.detectorArrays = nil
	t.observationID = ""
	t.state = StateLoaded
	logrus.Infof("loaded optical train: %d optical elements", len(optics.elements))
	return nil
}

// Update applies overrides and rebuilds the FOV manager, image planes and detector
// arrays from the current optics. A system without detector geometry fails here.
// After a failed Update the train is back in StateLoaded.
func (t *OpticalTrain) Update(overrides map[string]any) error {
	if t.state == StateUnloaded {
		return ErrNotLoaded
	}
	if err := t.update(overrides); err != nil {
		t.state = StateLoaded
		t.observationID = ""
		return err
	}
	return nil
}

func (t *OpticalTrain) update(overrides map[string]any) error {
	if len(overrides) > 0 {
		t.cmds.Update(overrides)
	}
	if err := t.optics.SetDerivedParameters(); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	headers, err := t.optics.ImagePlaneHeaders()
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	var arrays []*DetectorArray
	for _, e := range t.optics.DetectorSetupEffects() {
		geom, ok := e.(DetectorGeometry)
		if !ok {
			return fmt.Errorf("update: %w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageDetectorSetup)
		}
		da := NewDetectorArray(geom)
		da.onApply = func(e Effect, target string) { t.applied(StageDetector, e, target) }
		arrays = append(arrays, da)
	}

	setup, err := t.optics.FOVSetupEffects()
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	fm, err := NewFOVManager(setup, headers, t.cmds)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	t.headers = headers
	t.fovManager = fm
	t.detectorArrays = arrays
	t.resetImagePlanes()
	t.indexElements()
	t.state = StateUpdated
	logrus.Infof("updated optical train: %d image planes, %d detector arrays, %d FOVs",
		len(headers), len(arrays), len(fm.volumes))
	return nil
}

func (t *OpticalTrain) resetImagePlanes() {
	t.imagePlanes = make([]*ImagePlane, len(t.headers))
	for i, h := range t.headers {
		t.imagePlanes[i] = NewImagePlane(h)
	}
}

func (t *OpticalTrain) indexElements() {
	t.elementOf = make(map[Effect]string)
	for _, oe := range t.optics.elements {
		for _, e := range oe.effects {
			t.elementOf[e] = oe.Name
		}
	}
}

// Observe propagates a copy of src through the optical system into the image planes.
// src itself is never modified. Cancelling ctx stops the FOV loop between FOVs.
func (t *OpticalTrain) Observe(ctx context.Context, src *Source, opts ObserveOptions) error {
	if t.state == StateUnloaded {
		return ErrNotLoaded
	}
	if src == nil {
		return fmt.Errorf("observe: nil source")
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	// a failed run leaves nothing to read out
	if t.state > StateUpdated {
		t.state = StateUpdated
	}
	t.observationID = ""
	if opts.Update || t.state == StateLoaded {
		if err := t.Update(opts.Overrides); err != nil {
			return err
		}
	} else if len(opts.Overrides) > 0 {
		t.cmds.Update(opts.Overrides)
	}
	t.resetImagePlanes()

	obs := src.Copy()
	obs, err := t.applySourceEffects(obs)
	if err != nil {
		return err
	}

	if err := t.runFOVs(ctx, obs); err != nil {
		return err
	}

	if err := t.applyImagePlaneEffects(); err != nil {
		return err
	}

	t.observationID = uuid.NewString()
	t.state = StateObserved
	t.recorder.ObservationCompleted()
	t.trace.RecordObservation(trace.ObservationRecord{
		ObservationID: t.observationID,
		FOVs:          len(t.fovManager.volumes),
		ImagePlanes:   len(t.imagePlanes),
		SourcePhotons: t.sourcePhotons(src),
	})
	return nil
}

func (t *OpticalTrain) sourcePhotons(src *Source) float64 {
	wMin, err := LookupFloat(t.cmds, KeyWaveMin)
	if err != nil {
		return 0
	}
	wMax, err := LookupFloat(t.cmds, KeyWaveMax)
	if err != nil {
		return 0
	}
	return src.PhotonsInRange(wMin, wMax)
}

func (t *OpticalTrain) applySourceEffects(src *Source) (*Source, error) {
	start := time.Now()
	effects, err := t.optics.SourceEffects()
	if err != nil {
		return nil, err
	}
	for _, e := range effects {
		se, ok := e.(SourceEffect)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageSource)
		}
		src, err = se.ApplyToSource(t.cmds, src)
		if err != nil {
			return nil, fmt.Errorf("source effect %q: %w", e.Base().Name(), err)
		}
		t.applied(StageSource, e, "source")
	}
	t.recorder.StageDuration(StageSource, time.Since(start))
	return src, nil
}

func (t *OpticalTrain) runFOVs(ctx context.Context, src *Source) error {
	start := time.Now()
	area, err := LookupFloat(t.cmds, KeyTelescopeArea)
	if err != nil {
		return err
	}
	effects, err := t.optics.FOVEffects()
	if err != nil {
		return err
	}
	fovs := t.fovManager.FOVs()
	logrus.Infof("observing %d FOVs with %d FOV effects", len(fovs), len(effects))

	if t.workers < 2 {
		for _, fov := range fovs {
			if err := ctx.Err(); err != nil {
				return err
			}
			done, err := t.processFOV(fov, src, area, effects)
			if err != nil {
				return err
			}
			if err := t.addFOV(done); err != nil {
				return err
			}
		}
	} else {
		// FOVs may share pixels, so results are summed in FOV order once all are done
		done := make([]*FieldOfView, len(fovs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.workers)
		for i, fov := range fovs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				var err error
				done[i], err = t.processFOV(fov, src, area, effects)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, fov := range done {
			if err := t.addFOV(fov); err != nil {
				return err
			}
		}
	}
	t.recorder.StageDuration(StageFOV, time.Since(start))
	return nil
}

// processFOV extracts src into fov and applies the FOV effects.
func (t *OpticalTrain) processFOV(fov *FieldOfView, src *Source, area float64, effects []Effect) (*FieldOfView, error) {
	fov.ExtractFrom(src, area)
	target := fmt.Sprintf("fov %d", fov.ID)
	var err error
	for _, e := range effects {
		fe, ok := e.(FOVEffect)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageFOV)
		}
		fov, err = fe.ApplyToFOV(t.cmds, fov)
		if err != nil {
			return nil, fmt.Errorf("fov effect %q on %s: %w", e.Base().Name(), target, err)
		}
		t.applied(StageFOV, e, target)
	}
	return fov, nil
}

func (t *OpticalTrain) addFOV(fov *FieldOfView) error {
	ip := findImagePlane(t.imagePlanes, fov.ImagePlaneID())
	if ip == nil {
		return fmt.Errorf("fov %d: %w: image plane %d", fov.ID, ErrNotFound, fov.ImagePlaneID())
	}
	if err := ip.Add(fov); err != nil {
		return err
	}
	t.recorder.FOVProcessed()
	return nil
}

func (t *OpticalTrain) applyImagePlaneEffects() error {
	start := time.Now()
	effects, err := t.optics.ImagePlaneEffects()
	if err != nil {
		return err
	}
	for i, ip := range t.imagePlanes {
		target := fmt.Sprintf("image plane %d", ip.ID())
		for _, e := range effects {
			ipe, ok := e.(ImagePlaneEffect)
			if !ok {
				return fmt.Errorf("%w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageImagePlane)
			}
			ip, err = ipe.ApplyToImagePlane(t.cmds, ip)
			if err != nil {
				return fmt.Errorf("image plane effect %q on %s: %w", e.Base().Name(), target, err)
			}
			t.applied(StageImagePlane, e, target)
		}
		t.imagePlanes[i] = ip
	}
	t.recorder.StageDuration(StageImagePlane, time.Since(start))
	return nil
}

// Readout applies the detector effects through every detector array and returns one
// product per array. Image planes are left intact, so Readout may be repeated.
func (t *OpticalTrain) Readout(ctx context.Context, opts ReadoutOptions) ([]fits.HDUList, error) {
	if t.state < StateObserved {
		return nil, ErrNotObserved
	}
	if len(opts.Overrides) > 0 {
		t.cmds.Update(opts.Overrides)
	}
	start := time.Now()
	key, err := simulationKey(t.cmds)
	if err != nil {
		return nil, fmt.Errorf("readout: %w", err)
	}
	effects := t.optics.DetectorEffects()
	primary := []fits.Card{
		{Key: "ORIGIN", Value: "opticsim", Comment: "optical train simulator"},
		{Key: "OBSID", Value: t.observationID, Comment: "observation id"},
	}

	var products []fits.HDUList
	for i, da := range t.detectorArrays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := NewPartitionedRNG(SimulationKey(uint64(key) ^ fnv1a64(da.Name())))
		hdus, err := da.Readout(t.cmds, t.imagePlanes, effects, rng, primary)
		if err != nil {
			return nil, fmt.Errorf("readout: %w", err)
		}
		path := ""
		if opts.OutputPath != "" {
			path = indexedPath(opts.OutputPath, i)
			if err := fits.WriteFile(path, hdus); err != nil {
				return nil, fmt.Errorf("readout: writing %s: %w", path, err)
			}
			logrus.Infof("wrote %d detectors to %s", len(hdus)-1, path)
		}
		t.trace.RecordReadout(trace.ReadoutRecord{
			ObservationID: t.observationID,
			DetectorList:  da.Name(),
			Detectors:     len(hdus) - 1,
			Output:        path,
		})
		products = append(products, hdus)
	}
	t.recorder.StageDuration(StageDetector, time.Since(start))
	t.state = StateReadOut
	return products, nil
}

func indexedPath(path string, i int) string {
	if i == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), i, ext)
}

func (t *OpticalTrain) applied(stage Stage, e Effect, target string) {
	b := e.Base()
	logrus.Debugf("applied %s (%s) to %s", b.Name(), b.Class(), target)
	t.recorder.EffectApplied(stage, e)
	if t.trace.Enabled() {
		t.trace.RecordEffect(trace.EffectRecord{
			Stage:   stage.String(),
			Element: t.elementOf[e],
			Effect:  b.Name(),
			Class:   b.Class(),
			Target:  target,
		})
	}
}

// State returns the lifecycle position.
func (t *OpticalTrain) State() State { return t.state }

// Effects lists every loaded effect with its element, class, include flag and z-orders.
func (t *OpticalTrain) Effects() []EffectRow {
	if t.optics == nil {
		return nil
	}
	return t.optics.ListEffects()
}

// Find returns every element or effect named name.
func (t *OpticalTrain) Find(name string) []Match {
	if t.optics == nil {
		return nil
	}
	return t.optics.Find(name)
}

// Get returns the element or effect named name, or every match of an ambiguous name.
func (t *OpticalTrain) Get(name string) ([]Match, error) {
	if t.optics == nil {
		return nil, ErrNotLoaded
	}
	return t.optics.Get(name)
}

// Set updates the metadata of the effect named name. Ambiguous names are warned about
// and leave every effect unchanged.
func (t *OpticalTrain) Set(name string, updates map[string]any) error {
	if t.optics == nil {
		return ErrNotLoaded
	}
	return t.optics.Set(name, updates)
}

// ImagePlanes returns the image planes of the last observation.
func (t *OpticalTrain) ImagePlanes() []*ImagePlane {
	return append([]*ImagePlane(nil), t.imagePlanes...)
}

// DetectorArrays returns the detector arrays built by the last Update.
func (t *OpticalTrain) DetectorArrays() []*DetectorArray {
	return append([]*DetectorArray(nil), t.detectorArrays...)
}

// FOVManager returns the FOV manager built by the last Update.
func (t *OpticalTrain) FOVManager() *FOVManager { return t.fovManager }

// OpticsManager returns the loaded optics.
func (t *OpticalTrain) OpticsManager() *OpticsManager { return t.optics }

// ObservationID identifies the last observation; it is stamped into readout products.
func (t *OpticalTrain) ObservationID() string { return t.observationID }
