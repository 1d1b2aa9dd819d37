package ai

import (
	"fmt"
	"strings"
)

const frameAnalysisPrompt = `Identify the important objects visible in this video frame.
Respond with JSON only, shaped as:
{"objects":[{"name":"...","confidence":0.0,"boundingBox":{"x":0,"y":0,"width":0,"height":0},"description":"..."}]}
Coordinates are fractions of the frame size in the range 0..1.`

const checklistPrompt = `Turn the following video transcript into an ordered checklist of steps.
Respond with a JSON array only, shaped as:
[{"id":1,"text":"...","timestamp":"m:ss","completed":false}]`

func buildFramePrompt(extra string, width, height int) string {
	var sb strings.Builder
	sb.WriteString(frameAnalysisPrompt)
	if width > 0 && height > 0 {
		fmt.Fprintf(&sb, "\nThe frame is %dx%d pixels.", width, height)
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		sb.WriteString("\nFocus: ")
		sb.WriteString(extra)
	}
	return sb.String()
}

func buildSimplifyPrompt(text, level string) string {
	return fmt.Sprintf(`Rewrite the text below at a %s reading level for someone watching an educational video.
Keep the meaning. List every technical term you replaced with a short definition.
Respond with JSON only, shaped as {"simplified":"...","definitions":[{"term":"...","definition":"..."}]}.
"""%s"""`, level, text)
}

func buildChecklistPrompt(transcript string, keyFrames []string) string {
	var sb strings.Builder
	sb.WriteString(checklistPrompt)
	if len(keyFrames) > 0 {
		sb.WriteString("\nKey moments: ")
		sb.WriteString(strings.Join(keyFrames, ", "))
	}
	sb.WriteString("\nTranscript:\n\"\"\"")
	sb.WriteString(transcript)
	sb.WriteString("\"\"\"")
	return sb.String()
}
