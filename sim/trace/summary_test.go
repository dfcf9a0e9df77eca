package trace

import "testing"

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	pt := NewPipelineTrace(TraceConfig{Level: TraceLevelEffects})

	// WHEN summarized
	summary := Summarize(pt)

	// THEN all counts are zero
	if summary.TotalApplications != 0 || summary.UniqueEffects != 0 {
		t.Errorf("expected no applications, got %d (%d unique)", summary.TotalApplications, summary.UniqueEffects)
	}
	if summary.Observations != 0 || summary.Readouts != 0 || summary.TotalFOVs != 0 {
		t.Error("expected zero observations, readouts and FOVs")
	}
	if len(summary.StageCounts) != 0 {
		t.Error("expected empty stage counts")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalApplications != 0 || summary.EffectCounts == nil {
		t.Error("expected zero summary with initialized maps")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace of one observation over two FOVs and one readout
	pt := NewPipelineTrace(TraceConfig{Level: TraceLevelEffects})
	pt.RecordEffect(EffectRecord{Stage: "source", Effect: "filter", Target: "source"})
	pt.RecordEffect(EffectRecord{Stage: "fov", Effect: "psf", Target: "fov 0"})
	pt.RecordEffect(EffectRecord{Stage: "fov", Effect: "psf", Target: "fov 1"})
	pt.RecordEffect(EffectRecord{Stage: "detector", Effect: "shot_noise", Target: "detector 0"})
	pt.RecordObservation(ObservationRecord{ObservationID: "a", FOVs: 2, ImagePlanes: 1})
	pt.RecordReadout(ReadoutRecord{ObservationID: "a", DetectorList: "detectors", Detectors: 1})

	// WHEN summarized
	summary := Summarize(pt)

	// THEN counts match
	if summary.TotalApplications != 4 {
		t.Errorf("expected 4 applications, got %d", summary.TotalApplications)
	}
	if summary.UniqueEffects != 3 {
		t.Errorf("expected 3 unique effects, got %d", summary.UniqueEffects)
	}
	if summary.StageCounts["fov"] != 2 {
		t.Errorf("expected 2 fov applications, got %d", summary.StageCounts["fov"])
	}
	if summary.EffectCounts["psf"] != 2 {
		t.Errorf("expected psf applied twice, got %d", summary.EffectCounts["psf"])
	}
	if summary.TotalFOVs != 2 || summary.Observations != 1 || summary.Readouts != 1 {
		t.Errorf("unexpected observation summary: %+v", summary)
	}
}
