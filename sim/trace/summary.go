package trace

// TraceSummary aggregates statistics from a PipelineTrace.
type TraceSummary struct {
	TotalApplications int
	UniqueEffects     int
	Observations      int
	Readouts          int
	TotalFOVs         int
	StageCounts       map[string]int // stage name → number of applications
	EffectCounts      map[string]int // effect name → number of applications
}

// Summarize computes aggregate statistics from a PipelineTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(pt *PipelineTrace) *TraceSummary {
	summary := &TraceSummary{
		StageCounts:  make(map[string]int),
		EffectCounts: make(map[string]int),
	}
	if pt == nil {
		return summary
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()

	summary.TotalApplications = len(pt.Effects)
	for _, e := range pt.Effects {
		summary.StageCounts[e.Stage]++
		summary.EffectCounts[e.Effect]++
	}
	summary.UniqueEffects = len(summary.EffectCounts)

	summary.Observations = len(pt.Observations)
	for _, o := range pt.Observations {
		summary.TotalFOVs += o.FOVs
	}
	summary.Readouts = len(pt.Readouts)

	return summary
}
