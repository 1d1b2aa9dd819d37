package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockProvider returns canned, deterministic responses without network access.
// The responses mimic a real model, including prose around the JSON payload.
type MockProvider struct{}

// Name implements Provider.
func (MockProvider) Name() string { return ProviderMock }

// Generate implements Provider.
func (MockProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch req.Task {
	case TaskAnalyzeFrame:
		return `{"objects":[{"name":"diagram","confidence":0.92,"boundingBox":{"x":0.1,"y":0.15,"width":0.5,"height":0.4},"description":"Diagram shown on screen"},{"name":"presenter","confidence":0.81,"boundingBox":{"x":0.65,"y":0.2,"width":0.3,"height":0.7},"description":"Person explaining the topic"}]}`, nil
	case TaskSimplify:
		payload, err := json.Marshal(SimplificationResult{
			Simplified:  strings.TrimSpace(quotedSection(req.Prompt)),
			Definitions: []Definition{},
		})
		if err != nil {
			return "", err
		}
		return "Here is a simpler version:\n```json\n" + string(payload) + "\n```", nil
	case TaskChecklist:
		return `Sure! [{"id":1,"text":"Watch the introduction","timestamp":"0:00","completed":false},{"id":2,"text":"Follow the main steps","timestamp":"1:30","completed":false},{"id":3,"text":"Review the summary","timestamp":"5:00","completed":false}]`, nil
	case TaskProbe:
		return "Mock provider is reachable.", nil
	default:
		return "", providerError(ProviderMock, fmt.Sprintf("unsupported task %q", req.Task), nil)
	}
}

// quotedSection returns the text between the first pair of triple quotes in a
// prompt, or the whole prompt when none are present.
func quotedSection(prompt string) string {
	_, rest, ok := strings.Cut(prompt, `"""`)
	if !ok {
		return prompt
	}
	body, _, ok := strings.Cut(rest, `"""`)
	if !ok {
		return rest
	}
	return body
}
