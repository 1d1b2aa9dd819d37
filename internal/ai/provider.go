package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"vidmentor/internal/services"
)

// Provider names accepted in settings ai.provider.
const (
	ProviderGemini    = "gemini"
	ProviderGeminiSDK = "gemini-sdk"
	ProviderMock      = "mock"
)

// Image is an inline image part.
type Image struct {
	MIMEType string
	Data     []byte
}

// Task names the gateway operation behind a provider call.
type Task string

// Gateway tasks.
const (
	TaskAnalyzeFrame Task = "analyze_frame"
	TaskSimplify     Task = "simplify"
	TaskChecklist    Task = "checklist"
	TaskProbe        Task = "probe"
)

// GenerateRequest is one provider call.
type GenerateRequest struct {
	Task   Task
	APIKey string
	Model  string
	Prompt string
	Image  *Image
	// JSON asks the provider for a JSON response body where supported.
	JSON bool
}

// Provider produces text for a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

var placeholderKeys = map[string]struct{}{
	"your_api_key_here":        {},
	"your-api-key":             {},
	"your_api_key":             {},
	"your-api-key-here":        {},
	"<api-key>":                {},
	"<your-api-key>":           {},
	"api_key":                  {},
	"changeme":                 {},
	"your_gemini_api_key_here": {},
	"xxx":                      {},
}

// ValidateAPIKey rejects empty and placeholder credentials.
func ValidateAPIKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return services.Wrap(services.ErrConfiguration, "ai", "api key", "no API key configured; set ai.apiKey in settings", nil)
	}
	if IsPlaceholderKey(trimmed) {
		return services.Wrap(services.ErrConfiguration, "ai", "api key", "API key is a placeholder; set a real ai.apiKey in settings", nil)
	}
	return nil
}

// IsPlaceholderKey reports whether key is a template value rather than a credential.
func IsPlaceholderKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if _, ok := placeholderKeys[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "your") && strings.Contains(lower, "key")
}

// ParseDataURL decodes a base64 data URL such as data:image/png;base64,....
func ParseDataURL(value string) (*Image, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, services.Wrap(services.ErrValidation, "ai", "frame", "no image data provided", nil)
	}
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "ai", "frame", "image data must be a data URL", nil)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "ai", "frame", "malformed data URL", nil)
	}
	mime, encoding, _ := strings.Cut(meta, ";")
	if !strings.EqualFold(encoding, "base64") {
		return nil, services.Wrap(services.ErrValidation, "ai", "frame", "data URL must be base64 encoded", nil)
	}
	if mime == "" {
		mime = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ai", "frame", "decode image data", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "ai", "frame", "no image data provided", nil)
	}
	return &Image{MIMEType: mime, Data: data}, nil
}

func providerError(provider, message string, err error) error {
	return services.Wrap(services.ErrProvider, "ai", provider, message, err)
}

func snippetError(provider, what, body string) error {
	return providerError(provider, fmt.Sprintf("%s (payload snippet: %s)", what, summarizePayloadSnippet(body)), nil)
}
