// Package trace provides effect-application tracing for optical train runs.
// This package has no dependencies on sim/; it stores plain data types.
package trace

// EffectRecord captures a single effect application.
type EffectRecord struct {
	Stage   string
	Element string // empty for the synthesized surfaces table
	Effect  string
	Class   string
	Target  string // "source", "fov 3", "image plane 0", "detector 1"
}

// ObservationRecord captures one completed observation.
type ObservationRecord struct {
	ObservationID string
	FOVs          int
	ImagePlanes   int
	SourcePhotons float64 // photons/s/m2 over the observed wavelength range, before any effect
}

// ReadoutRecord captures one detector array readout.
type ReadoutRecord struct {
	ObservationID string
	DetectorList  string
	Detectors     int
	Output        string // file path, empty when the product was not written
}
