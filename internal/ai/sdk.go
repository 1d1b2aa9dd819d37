package ai

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// SDKProvider calls Gemini through the official genai client.
type SDKProvider struct {
	baseURL string
}

// NewSDKProvider constructs the genai-backed provider. An empty baseURL uses
// the SDK default host.
func NewSDKProvider(baseURL string) *SDKProvider {
	return &SDKProvider{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// Name implements Provider.
func (p *SDKProvider) Name() string { return ProviderGeminiSDK }

// Generate implements Provider.
func (p *SDKProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := ValidateAPIKey(req.APIKey); err != nil {
		return "", err
	}
	cfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(req.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" && p.baseURL != defaultRESTBaseURL {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", providerError(p.Name(), "create client", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil && len(req.Image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var genCfg *genai.GenerateContentConfig
	if req.JSON {
		genCfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, genCfg)
	if err != nil {
		return "", providerError(p.Name(), "generate content", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", providerError(p.Name(), "response has no candidates", nil)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", snippetError(p.Name(), "response has no text", string(resp.Candidates[0].FinishReason))
	}
	return text, nil
}
