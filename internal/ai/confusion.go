package ai

import "vidmentor/internal/behavior"

// Intervention names suggested when a viewer appears confused.
const (
	InterventionVocabulary = "vocabulary_simplification"
	InterventionSteps      = "step_breakdown"
	InterventionPause      = "pause_assistance"
)

// ConfusionThreshold is the score at which a sample counts as confused.
const ConfusionThreshold = 3

// AssessConfusion scores a behavior sample. Rewinds weigh twice as much as
// pauses; speed changes and segment history are ignored.
func AssessConfusion(sample behavior.Sample) ConfusionAssessment {
	score := sample.RewindCount*2 + sample.PauseCount
	if score < ConfusionThreshold {
		return ConfusionAssessment{
			IsConfused:     false,
			ConfusionScore: float64(score),
			Recommendation: "Viewer appears to be following along.",
		}
	}
	return ConfusionAssessment{
		IsConfused:     true,
		ConfusionScore: float64(score),
		Recommendation: "Viewer may be confused. Offer simplified explanations or a step-by-step breakdown.",
		SuggestedIntervention: []string{
			InterventionVocabulary,
			InterventionSteps,
			InterventionPause,
		},
	}
}
