package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// SimulationKey identifies a reproducible readout. Two readouts with the same key and
// identical configuration produce bit-for-bit identical detector frames.
type SimulationKey uint64

// SubsystemDetector returns the RNG subsystem name for one detector effect on one chip.
func SubsystemDetector(effect string, detectorID int) string {
	return fmt.Sprintf("%s/detector_%d", effect, detectorID)
}

// PartitionedRNG provides deterministic, isolated RNG streams per subsystem.
// Each subsystem is seeded with (key, fnv1a64(name)), so adding or reordering detector
// effects never perturbs the noise drawn by the others.
//
// Thread-safety: NOT thread-safe. Readout draws from it on a single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the RNG for the named subsystem. The same name always returns
// the same *rand.Rand instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewPCG(uint64(p.key), fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// simulationKey reads KeyRandomSeed, drawing a fresh key when no seed is configured.
func simulationKey(cfg Config) (SimulationKey, error) {
	if _, ok := cfg.Lookup(KeyRandomSeed); !ok {
		return SimulationKey(rand.Uint64()), nil
	}
	raw, err := Ref(KeyRandomSeed).Resolve(cfg)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return SimulationKey(rand.Uint64()), nil
	}
	n, err := ToInt(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", KeyRandomSeed, err)
	}
	return SimulationKey(n), nil
}

func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
