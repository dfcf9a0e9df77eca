package trace

import "sync"

// TraceLevel controls the verbosity of pipeline tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEffects captures every effect application plus observation and readout records.
	TraceLevelEffects TraceLevel = "effects"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelEffects: true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// PipelineTrace collects records while an optical train observes and reads out.
// Recording is safe from concurrent FOV workers.
type PipelineTrace struct {
	Config       TraceConfig
	Effects      []EffectRecord
	Observations []ObservationRecord
	Readouts     []ReadoutRecord

	mu sync.Mutex
}

// NewPipelineTrace creates a PipelineTrace ready for recording.
func NewPipelineTrace(config TraceConfig) *PipelineTrace {
	return &PipelineTrace{
		Config:       config,
		Effects:      make([]EffectRecord, 0),
		Observations: make([]ObservationRecord, 0),
		Readouts:     make([]ReadoutRecord, 0),
	}
}

// Enabled reports whether records are kept.
func (pt *PipelineTrace) Enabled() bool {
	return pt != nil && pt.Config.Level == TraceLevelEffects
}

// RecordEffect appends an effect application record.
func (pt *PipelineTrace) RecordEffect(record EffectRecord) {
	if !pt.Enabled() {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.Effects = append(pt.Effects, record)
}

// RecordObservation appends an observation record.
func (pt *PipelineTrace) RecordObservation(record ObservationRecord) {
	if !pt.Enabled() {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.Observations = append(pt.Observations, record)
}

// RecordReadout appends a readout record.
func (pt *PipelineTrace) RecordReadout(record ReadoutRecord) {
	if !pt.Enabled() {
		return
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.Readouts = append(pt.Readouts, record)
}
