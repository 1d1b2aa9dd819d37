package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidmentor/internal/behavior"
	"vidmentor/internal/logging"
	"vidmentor/internal/services"
	"vidmentor/internal/settings"
)

// SettingsReader exposes the settings the gateway consults on every call.
type SettingsReader interface {
	AI(ctx context.Context) (settings.AI, error)
	Preferences(ctx context.Context) (settings.Preferences, error)
}

// FrameRequest describes an ANALYZE_FRAME call.
type FrameRequest struct {
	DataURL string
	Prompt  string
	Width   int
	Height  int
}

// Gateway turns assistant operations into provider calls and typed results.
type Gateway struct {
	settings  SettingsReader
	providers map[string]Provider
	mock      Provider
	logger    *slog.Logger
}

// NewGateway builds a gateway over the supplied providers. The mock provider
// is always registered.
func NewGateway(reader SettingsReader, logger *slog.Logger, providers ...Provider) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Gateway{
		settings:  reader,
		providers: make(map[string]Provider, len(providers)+1),
		mock:      MockProvider{},
		logger:    logging.NewComponentLogger(logger, "ai"),
	}
	g.providers[ProviderMock] = g.mock
	for _, p := range providers {
		if p != nil {
			g.providers[p.Name()] = p
		}
	}
	return g
}

// selection is the provider plus the settings a call runs with.
type selection struct {
	provider Provider
	ai       settings.AI
}

func (g *Gateway) selectProvider(ctx context.Context) (selection, error) {
	cfg, err := g.settings.AI(ctx)
	if err != nil {
		return selection{}, fmt.Errorf("load ai settings: %w", err)
	}
	if cfg.UseMockAI {
		return selection{provider: g.mock, ai: cfg}, nil
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	provider, ok := g.providers[name]
	if !ok {
		return selection{}, services.Wrap(services.ErrConfiguration, "ai", "select provider",
			fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
	if name != ProviderMock {
		if err := ValidateAPIKey(cfg.APIKey); err != nil {
			return selection{}, err
		}
	}
	return selection{provider: provider, ai: cfg}, nil
}

func (g *Gateway) generate(ctx context.Context, sel selection, req GenerateRequest) (string, error) {
	req.APIKey = sel.ai.APIKey
	logger := logging.WithContext(ctx, g.logger)
	logger.Debug("provider call",
		logging.String("provider", sel.provider.Name()),
		logging.String("task", string(req.Task)),
		logging.String("model", req.Model),
		logging.Bool("image", req.Image != nil),
	)
	text, err := sel.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (g *Gateway) degraded(ctx context.Context, task Task, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, g.logger), "provider response not structured; using fallback", "ai_parse_degraded",
		logging.String("task", string(task)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the model replied in prose; consider a stricter prompt or model"),
		logging.String(logging.FieldImpact, "result reduced to a minimal default"),
	)
}

// AnalyzeFrame detects objects in a captured frame.
func (g *Gateway) AnalyzeFrame(ctx context.Context, req FrameRequest) (ObjectDetectionResult, error) {
	image, err := ParseDataURL(req.DataURL)
	if err != nil {
		return ObjectDetectionResult{}, err
	}
	sel, err := g.selectProvider(ctx)
	if err != nil {
		return ObjectDetectionResult{}, err
	}
	text, err := g.generate(ctx, sel, GenerateRequest{
		Task:   TaskAnalyzeFrame,
		Model:  sel.ai.ModelVLM,
		Prompt: buildFramePrompt(req.Prompt, req.Width, req.Height),
		Image:  image,
		JSON:   true,
	})
	if err != nil {
		return ObjectDetectionResult{}, err
	}
	return g.parseDetection(ctx, text), nil
}

func (g *Gateway) parseDetection(ctx context.Context, text string) ObjectDetectionResult {
	var result ObjectDetectionResult
	if _, err := Extract(text, &result); err != nil {
		var objects []DetectedObject
		if _, arrErr := Extract(text, &objects); arrErr == nil {
			return ObjectDetectionResult{Objects: objects}
		}
		g.degraded(ctx, TaskAnalyzeFrame, err)
		return ObjectDetectionResult{Objects: []DetectedObject{}}
	}
	if result.Objects == nil {
		result.Objects = []DetectedObject{}
	}
	return result
}

// Simplify rewrites text at the requested reading level. An empty level uses
// preferences.simplificationLevel.
func (g *Gateway) Simplify(ctx context.Context, text, level string) (SimplificationResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SimplificationResult{}, services.Wrap(services.ErrValidation, "ai", "simplify", "no text provided", nil)
	}
	if strings.TrimSpace(level) == "" {
		prefs, err := g.settings.Preferences(ctx)
		if err != nil {
			return SimplificationResult{}, fmt.Errorf("load preferences: %w", err)
		}
		level = prefs.SimplificationLevel
	}
	sel, err := g.selectProvider(ctx)
	if err != nil {
		return SimplificationResult{}, err
	}
	reply, err := g.generate(ctx, sel, GenerateRequest{
		Task:   TaskSimplify,
		Model:  sel.ai.ModelLLM,
		Prompt: buildSimplifyPrompt(text, level),
		JSON:   true,
	})
	if err != nil {
		return SimplificationResult{}, err
	}
	return g.parseSimplification(ctx, reply), nil
}

func (g *Gateway) parseSimplification(ctx context.Context, reply string) SimplificationResult {
	var result SimplificationResult
	if _, err := Extract(reply, &result); err != nil || strings.TrimSpace(result.Simplified) == "" {
		if err == nil {
			err = errors.New("simplified field missing")
		}
		g.degraded(ctx, TaskSimplify, err)
		return SimplificationResult{Simplified: strings.TrimSpace(reply), Definitions: []Definition{}}
	}
	if result.Definitions == nil {
		result.Definitions = []Definition{}
	}
	return result
}

// GenerateChecklist breaks a transcript into ordered steps.
func (g *Gateway) GenerateChecklist(ctx context.Context, transcript string, keyFrames []string) (ChecklistResult, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, services.Wrap(services.ErrValidation, "ai", "checklist", "no transcript provided", nil)
	}
	sel, err := g.selectProvider(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := g.generate(ctx, sel, GenerateRequest{
		Task:   TaskChecklist,
		Model:  sel.ai.ModelLLM,
		Prompt: buildChecklistPrompt(transcript, keyFrames),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}
	return g.parseChecklist(ctx, reply), nil
}

func (g *Gateway) parseChecklist(ctx context.Context, reply string) ChecklistResult {
	var items ChecklistResult
	if _, err := Extract(reply, &items); err != nil || len(items) == 0 {
		var wrapped struct {
			Items ChecklistResult `json:"items"`
		}
		if _, wrapErr := Extract(reply, &wrapped); wrapErr != nil || len(wrapped.Items) == 0 {
			if err == nil {
				err = ErrNoStructuredPayload
			}
			g.degraded(ctx, TaskChecklist, err)
			return checklistFromLines(reply)
		}
		items = wrapped.Items
	}
	for i := range items {
		if items[i].ID.String() == "" {
			items[i].ID = itemID(i + 1)
		}
	}
	return items
}

// checklistFromLines makes one item per non-empty line, stripping list markers.
func checklistFromLines(text string) ChecklistResult {
	items := ChecklistResult{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if line == "" {
			continue
		}
		items = append(items, ChecklistItem{ID: itemID(len(items) + 1), Text: Text(line)})
	}
	return items
}

// DetectConfusion scores a behavior sample. No provider is consulted.
func (g *Gateway) DetectConfusion(ctx context.Context, sample behavior.Sample) (ConfusionAssessment, error) {
	if err := ctx.Err(); err != nil {
		return ConfusionAssessment{}, err
	}
	assessment := AssessConfusion(sample)
	logging.WithContext(ctx, g.logger).Debug("confusion assessed",
		logging.Int("rewind_count", sample.RewindCount),
		logging.Int("pause_count", sample.PauseCount),
		logging.Float64("score", assessment.ConfusionScore),
		logging.Bool("confused", assessment.IsConfused),
	)
	return assessment, nil
}

// Probe checks provider connectivity with a frame and prompt. Without a usable
// key it reports key presence only and makes no call.
func (g *Gateway) Probe(ctx context.Context, dataURL, prompt string) (ProbeResult, error) {
	cfg, err := g.settings.AI(ctx)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("load ai settings: %w", err)
	}
	hasKey := ValidateAPIKey(cfg.APIKey) == nil
	if !hasKey && !cfg.UseMockAI {
		return ProbeResult{HasAPIKey: false, Provider: cfg.Provider}, nil
	}
	image, err := ParseDataURL(dataURL)
	if err != nil {
		return ProbeResult{}, err
	}
	sel, err := g.selectProvider(ctx)
	if err != nil {
		return ProbeResult{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Describe this frame in one sentence."
	}
	raw, err := g.generate(ctx, sel, GenerateRequest{
		Task:   TaskProbe,
		Model:  sel.ai.ModelVLM,
		Prompt: prompt,
		Image:  image,
	})
	if err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{
		HasAPIKey: hasKey,
		Provider:  sel.provider.Name(),
		Model:     sel.ai.ModelVLM,
		Raw:       raw,
	}, nil
}
