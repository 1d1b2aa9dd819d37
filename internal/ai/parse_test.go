package ai

import (
	"errors"
	"testing"
)

func TestExtractFromProse(t *testing.T) {
	reply := `Sure! Here is the result: {"simplified":"x","definitions":[]} Hope that helps!`
	var result SimplificationResult
	strategy, err := Extract(reply, &result)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if strategy != "balanced" {
		t.Fatalf("expected balanced strategy, got %q", strategy)
	}
	if result.Simplified != "x" || result.Definitions == nil || len(result.Definitions) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExtractStrategies(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strategy string
	}{
		{name: "direct", input: `{"simplified":"a","definitions":[]}`, strategy: "direct"},
		{name: "fence", input: "Result:\n```json\n{\"simplified\":\"a\",\"definitions\":[]}\n```", strategy: "code-fence"},
		{name: "bare fence", input: "```\n{\"simplified\":\"a\",\"definitions\":[]}\n```", strategy: "code-fence"},
		{name: "braces inside strings", input: `note {"simplified":"a } [ b","definitions":[]} end`, strategy: "balanced"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var result SimplificationResult
			strategy, err := Extract(tc.input, &result)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			if strategy != tc.strategy {
				t.Fatalf("expected strategy %q, got %q", tc.strategy, strategy)
			}
			if result.Simplified == "" {
				t.Fatalf("simplified not decoded: %+v", result)
			}
		})
	}
}

func TestExtractFailsWithoutPayload(t *testing.T) {
	var result SimplificationResult
	_, err := Extract("nothing structured here", &result)
	if !errors.Is(err, ErrNoStructuredPayload) {
		t.Fatalf("expected ErrNoStructuredPayload, got %v", err)
	}
	if _, err := Extract("   ", &result); !errors.Is(err, ErrNoStructuredPayload) {
		t.Fatalf("expected ErrNoStructuredPayload for empty input, got %v", err)
	}
}

func TestChecklistAcceptsNumericIDs(t *testing.T) {
	var items ChecklistResult
	if _, err := Extract(`[{"id":1,"text":"Open the lid","timestamp":90,"completed":false}]`, &items); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "1" || items[0].Timestamp != "90" {
		t.Fatalf("unexpected items: %+v", items)
	}
}
