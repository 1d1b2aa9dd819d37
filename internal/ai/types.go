package ai

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Definition explains one term replaced during simplification.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// SimplificationResult is returned by SIMPLIFY_TEXT.
type SimplificationResult struct {
	Simplified  string       `json:"simplified"`
	Definitions []Definition `json:"definitions"`
}

// ChecklistItem is one step of a generated checklist.
type ChecklistItem struct {
	ID        Text `json:"id"`
	Text      Text `json:"text"`
	Timestamp Text `json:"timestamp"`
	Completed bool `json:"completed"`
}

// ChecklistResult is returned by GENERATE_CHECKLIST.
type ChecklistResult []ChecklistItem

// BoundingBox locates an object in frame coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedObject is one object reported by frame analysis.
type DetectedObject struct {
	Name        string      `json:"name"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Description string      `json:"description"`
}

// ObjectDetectionResult is returned by ANALYZE_FRAME.
type ObjectDetectionResult struct {
	Objects []DetectedObject `json:"objects"`
}

// ConfusionAssessment is returned by DETECT_CONFUSION.
type ConfusionAssessment struct {
	IsConfused            bool     `json:"isConfused"`
	ConfusionScore        float64  `json:"confusionScore"`
	Recommendation        string   `json:"recommendation"`
	SuggestedIntervention []string `json:"suggestedIntervention"`
}

// ProbeResult is returned by TEST_GEMINI.
type ProbeResult struct {
	HasAPIKey bool   `json:"hasApiKey"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

// Text accepts either a JSON string or number, since providers are not
// consistent about ids and timestamps.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

func itemID(n int) Text {
	return Text(strconv.Itoa(n))
}

func (t Text) String() string { return strings.TrimSpace(string(t)) }
