package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/opticsim/opticsim/sim/fits"
)

// Detector is one chip during readout: its geometry, pixel values and the keywords
// detector effects record (exposure time, noise parameters, ...).
type Detector struct {
	Header DetectorHeader
	Image  *mat.Dense
	Cards  *fits.Header
	// RNG is the noise stream of the effect currently being applied.
	RNG *rand.Rand
}

// NewDetector resamples the chip's pixels from the image plane. Each chip pixel takes
// the value of the image plane pixel containing its (rotated) centre; pixels falling
// outside the image plane read zero.
func NewDetector(h DetectorHeader, ip *ImagePlane) *Detector {
	w, ht := h.Width(), h.Height()
	img := mat.NewDense(ht, w, nil)
	for j := 0; j < ht; j++ {
		for i := 0; i < w; i++ {
			x, y := h.MMOfPixel(i, j)
			pi, pj := ip.Header.PixelOfMM(x, y)
			if ip.Header.Contains(pi, pj) {
				img.Set(j, i, ip.Image.At(pj, pi))
			}
		}
	}
	return &Detector{Header: h, Image: img, Cards: fits.NewHeader(h.Cards()...)}
}

// HDU returns the chip as a FITS image extension.
func (d *Detector) HDU() *fits.HDU {
	hdr := fits.NewHeader(d.Cards.Cards()...)
	hdr.Set("EXTNAME", fmt.Sprintf("DET_%d", d.Header.ID), "")
	return &fits.HDU{Header: hdr, Data: mat.DenseCopyOf(d.Image)}
}

// DetectorArray reads out the chips described by one DetectorGeometry effect.
type DetectorArray struct {
	geometry DetectorGeometry
	onApply  func(e Effect, target string)
}

// NewDetectorArray wraps a detector-setup effect.
func NewDetectorArray(geometry DetectorGeometry) *DetectorArray {
	return &DetectorArray{geometry: geometry}
}

// Name returns the name of the underlying detector list effect.
func (da *DetectorArray) Name() string { return da.geometry.Base().Name() }

// Readout evaluates the active detectors from current metadata, extracts each from its
// image plane, applies the detector effects in order and returns the product: an empty
// primary HDU followed by one image extension per detector.
func (da *DetectorArray) Readout(cfg Config, planes []*ImagePlane, effects []Effect, rng *PartitionedRNG, primary []fits.Card) (fits.HDUList, error) {
	headers, err := da.geometry.DetectorHeaders(cfg)
	if err != nil {
		return nil, fmt.Errorf("detector array %q: %w", da.Name(), err)
	}
	hdus := fits.HDUList{{Header: fits.NewHeader(primary...)}}
	hdus[0].Header.Set("DETLIST", da.Name(), "detector list effect")
	hdus[0].Header.Set("NDET", len(headers), "number of active detectors")

	for _, h := range headers {
		ip := findImagePlane(planes, h.ImagePlaneID)
		if ip == nil {
			return nil, fmt.Errorf("detector %d: %w: image plane %d", h.ID, ErrNotFound, h.ImagePlaneID)
		}
		det := NewDetector(h, ip)
		for _, e := range effects {
			de, ok := e.(DetectorEffect)
			if !ok {
				return nil, fmt.Errorf("%w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageDetector)
			}
			det.RNG = rng.ForSubsystem(SubsystemDetector(e.Base().Name(), h.ID))
			det, err = de.ApplyToDetector(cfg, det)
			if err != nil {
				return nil, fmt.Errorf("detector effect %q on detector %d: %w", e.Base().Name(), h.ID, err)
			}
			logrus.Debugf("applied %s to detector %d", e.Base().Name(), h.ID)
			if da.onApply != nil {
				da.onApply(e, fmt.Sprintf("detector %d", h.ID))
			}
		}
		det.RNG = nil
		hdus = append(hdus, det.HDU())
	}
	return hdus, nil
}

func findImagePlane(planes []*ImagePlane, id int) *ImagePlane {
	for _, ip := range planes {
		if ip.Header.ID == id {
			return ip
		}
	}
	return nil
}
