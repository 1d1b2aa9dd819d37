package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoStructuredPayload reports that no extraction strategy produced a value
// of the requested shape.
var ErrNoStructuredPayload = errors.New("no structured payload found")

type extractStrategy struct {
	name string
	pick func(string) (string, bool)
}

var extractStrategies = []extractStrategy{
	{name: "direct", pick: func(s string) (string, bool) { return s, true }},
	{name: "code-fence", pick: fencedBlock},
	{name: "balanced", pick: firstBalanced},
}

// Extract decodes a structured value from provider text into target. It tries
// the whole text, then a fenced code block, then the first balanced JSON
// object or array. The name of the strategy that succeeded is returned.
func Extract(text string, target any) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty payload", ErrNoStructuredPayload)
	}
	var lastErr error
	for _, strategy := range extractStrategies {
		candidate, ok := strategy.pick(trimmed)
		if !ok {
			continue
		}
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), target); err != nil {
			lastErr = err
			continue
		}
		return strategy.name, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no json candidate")
	}
	return "", fmt.Errorf("%w: %v (payload snippet: %s)", ErrNoStructuredPayload, lastErr, summarizePayloadSnippet(trimmed))
}

// fencedBlock returns the body of the first ``` fence, dropping a language tag.
func fencedBlock(content string) (string, bool) {
	start := strings.Index(content, "```")
	if start < 0 {
		return "", false
	}
	body := content[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || isFenceTag(tag) {
			body = body[nl+1:]
		}
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return "", false
	}
	return body[:end], true
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// firstBalanced scans for the first '{' or '[' whose matching closer is found,
// ignoring brackets inside JSON strings.
func firstBalanced(content string) (string, bool) {
	for i := 0; i < len(content); i++ {
		if content[i] != '{' && content[i] != '[' {
			continue
		}
		if end, ok := matchClose(content, i); ok {
			return content[i : end+1], true
		}
	}
	return "", false
}

func matchClose(content string, start int) (int, bool) {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
