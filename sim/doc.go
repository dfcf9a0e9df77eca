// Package sim provides the effect-composition engine of the optical train simulator.
//
// # Reading Guide
//
// Start with these files to understand the pipeline:
//   - stage.go: pipeline stages and the z-order bands they map to in configuration
//   - effect.go: the Effect contract, per-stage transform interfaces, EffectBase
//   - optics_manager.go: effect classification, band accessors, surfaces table cache
//   - optical_train.go: the load → update → observe → readout state machine
//
// # Architecture
//
// The sim package defines interfaces, the registry and the orchestrator; implementations
// live in sub-packages:
//   - sim/effects/: concrete effects (surface lists, TER curves, detector lists, PSFs, noise)
//   - sim/commands/: configuration documents, instrument modes and filter selection
//   - sim/table/: ASCII table reader for detector layouts and curves
//   - sim/fits/: output product writer
//   - sim/metrics/: Prometheus pipeline telemetry
//   - sim/trace/: per-effect pipeline trace
//
// Sub-packages register their effect classes via init() functions that call
// RegisterEffect. Configuration documents name a class; MakeEffect resolves it.
//
// # Configuration Context
//
// There is no process-wide configuration. Every effect constructor and transform receives
// a Config, and metadata values that reference configuration ("!SECTION.key") are resolved
// explicitly against it at the point of use.
package sim
