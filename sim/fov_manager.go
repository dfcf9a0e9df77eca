package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// FOVManager partitions the observation into FOV windows. The volume list is computed
// once at construction; every Update of the optical train builds a new manager.
type FOVManager struct {
	volumes []Volume
}

// NewFOVManager seeds one volume per image plane over the configured wavelength range,
// lets every setup effect constrain or split the volumes in band order, then tiles them
// into chunks of at most KeyChunkSize pixels per side.
func NewFOVManager(setup []Effect, headers []ImagePlaneHeader, cfg Config) (*FOVManager, error) {
	waveMin, err := LookupFloat(cfg, KeyWaveMin)
	if err != nil {
		return nil, err
	}
	waveMax, err := LookupFloat(cfg, KeyWaveMax)
	if err != nil {
		return nil, err
	}
	if waveMax <= waveMin {
		return nil, fmt.Errorf("%w: wavelength range [%g, %g] is empty", ErrMissingParameter, waveMin, waveMax)
	}
	chunk, err := LookupIntOr(cfg, KeyChunkSize, defaultChunkSize)
	if err != nil {
		return nil, err
	}

	vols := make([]Volume, 0, len(headers))
	for _, h := range headers {
		vols = append(vols, NewVolume(h, waveMin, waveMax))
	}
	for _, e := range setup {
		fe, ok := e.(FOVSetupEffect)
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot run at %s", ErrStageMismatch, e.Base().Name(), StageFOVSetup)
		}
		vols, err = fe.ApplyToVolumes(cfg, vols)
		if err != nil {
			return nil, fmt.Errorf("fov setup effect %q: %w", e.Base().Name(), err)
		}
	}

	m := &FOVManager{}
	for _, v := range vols {
		if v.Empty() {
			continue
		}
		m.volumes = append(m.volumes, v.Tile(chunk)...)
	}
	logrus.Debugf("fov manager: %d volumes from %d image planes (chunk=%d)", len(m.volumes), len(headers), chunk)
	return m, nil
}

// Volumes returns the FOV windows in processing order.
func (m *FOVManager) Volumes() []Volume {
	return append([]Volume(nil), m.volumes...)
}

// FOVs returns fresh, empty FOVs for every window, in processing order.
func (m *FOVManager) FOVs() []*FieldOfView {
	fovs := make([]*FieldOfView, len(m.volumes))
	for i, v := range m.volumes {
		fovs[i] = NewFieldOfView(i, v)
	}
	return fovs
}
