package ai

import (
	"context"
	"testing"

	"vidmentor/internal/behavior"
)

func TestAssessConfusionScores(t *testing.T) {
	confused := AssessConfusion(behavior.Sample{RewindCount: 3})
	if !confused.IsConfused || confused.ConfusionScore != 6 {
		t.Fatalf("expected confused with score 6, got %+v", confused)
	}
	want := []string{InterventionVocabulary, InterventionSteps, InterventionPause}
	if len(confused.SuggestedIntervention) != len(want) {
		t.Fatalf("unexpected suggestions: %v", confused.SuggestedIntervention)
	}
	for i := range want {
		if confused.SuggestedIntervention[i] != want[i] {
			t.Fatalf("suggestion %d = %q, want %q", i, confused.SuggestedIntervention[i], want[i])
		}
	}

	calm := AssessConfusion(behavior.Sample{PauseCount: 2})
	if calm.IsConfused || calm.ConfusionScore != 2 {
		t.Fatalf("expected not confused with score 2, got %+v", calm)
	}
	if calm.SuggestedIntervention != nil {
		t.Fatalf("expected nil suggestions, got %v", calm.SuggestedIntervention)
	}
}

func TestAssessConfusionIgnoresSpeedChanges(t *testing.T) {
	got := AssessConfusion(behavior.Sample{PlaybackSpeedChanges: 10, PauseCount: 1})
	if got.IsConfused || got.ConfusionScore != 1 {
		t.Fatalf("speed changes should not count, got %+v", got)
	}
}

func TestDetectConfusionThroughGateway(t *testing.T) {
	gw := NewGateway(&stubSettings{}, nil)
	got, err := gw.DetectConfusion(context.Background(), behavior.Sample{RewindCount: 1, PauseCount: 1})
	if err != nil {
		t.Fatalf("DetectConfusion returned error: %v", err)
	}
	if !got.IsConfused || got.ConfusionScore != 3 {
		t.Fatalf("expected threshold score to count as confused, got %+v", got)
	}
}
