package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stage is the pipeline stage an effect participates in.
// Numeric z-order bands appear only in configuration files; see StageForZOrder.
type Stage int

const (
	StageFOVSetup Stage = iota
	StageSurfaces
	StageImagePlaneSetup
	StageDetectorSetup
	StageSource
	StageFOV
	StageImagePlane
	StageDetector
)

// stageBands maps each stage to the lower bound of its z-order band.
var stageBands = map[Stage]int{
	StageFOVSetup:        0,
	StageSurfaces:        100,
	StageImagePlaneSetup: 300,
	StageDetectorSetup:   400,
	StageSource:          500,
	StageFOV:             600,
	StageImagePlane:      700,
	StageDetector:        800,
}

// legacyFOVSetupBand is the band older configurations used for FOV setup effects.
const legacyFOVSetupBand = 200

var stageNames = map[Stage]string{
	StageFOVSetup:        "fov_setup",
	StageSurfaces:        "surfaces",
	StageImagePlaneSetup: "image_plane_setup",
	StageDetectorSetup:   "detector_setup",
	StageSource:          "source",
	StageFOV:             "fov",
	StageImagePlane:      "image_plane",
	StageDetector:        "detector",
}

// AllStages lists stages in execution order of their bands.
var AllStages = []Stage{
	StageFOVSetup, StageSurfaces, StageImagePlaneSetup, StageDetectorSetup,
	StageSource, StageFOV, StageImagePlane, StageDetector,
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Band returns the lower bound of the stage's z-order band.
func (s Stage) Band() int {
	return stageBands[s]
}

// StageForZOrder maps a configuration z-order value to its stage.
// The legacy 200-299 band is accepted and mapped to StageFOVSetup.
func StageForZOrder(z int) (Stage, error) {
	if z < 0 || z >= 900 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidZOrder, z)
	}
	band := z / 100 * 100
	if band == legacyFOVSetupBand {
		logrus.Warnf("z_order %d uses the legacy 200-299 band; treating it as FOV setup (0-99)", z)
		return StageFOVSetup, nil
	}
	for stage, lower := range stageBands {
		if lower == band {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidZOrder, z)
}

// StagesForZOrders maps every z-order to its stage, dropping duplicates but keeping order.
func StagesForZOrders(zs []int) ([]Stage, error) {
	stages := make([]Stage, 0, len(zs))
	seen := make(map[Stage]bool, len(zs))
	for _, z := range zs {
		stage, err := StageForZOrder(z)
		if err != nil {
			return nil, err
		}
		if !seen[stage] {
			seen[stage] = true
			stages = append(stages, stage)
		}
	}
	return stages, nil
}
