package router

import (
	"context"
	"fmt"

	"vidmentor/internal/ai"
	"vidmentor/internal/behavior"
	"vidmentor/internal/protocol"
)

type handlers struct {
	store     SettingsStore
	assistant Assistant
}

type dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (h *handlers) analyzeFrame(ctx context.Context, req protocol.Request) (any, error) {
	dataURL := stringField(req, "frameDataUrl")
	if dataURL == "" {
		return nil, missing("analyze frame", "image data")
	}
	var dims dimensions
	if _, err := req.DecodeField("dimensions", &dims); err != nil {
		return nil, invalid("analyze frame", "dimensions", err)
	}
	return h.assistant.AnalyzeFrame(ctx, ai.FrameRequest{
		DataURL: dataURL,
		Prompt:  stringField(req, "prompt"),
		Width:   dims.Width,
		Height:  dims.Height,
	})
}

func (h *handlers) testGemini(ctx context.Context, req protocol.Request) (any, error) {
	return h.assistant.Probe(ctx, stringField(req, "frameDataUrl"), stringField(req, "prompt"))
}

func (h *handlers) simplifyText(ctx context.Context, req protocol.Request) (any, error) {
	text := stringField(req, "text")
	if text == "" {
		return nil, missing("simplify text", "text")
	}
	return h.assistant.Simplify(ctx, text, stringField(req, "level"))
}

func (h *handlers) generateChecklist(ctx context.Context, req protocol.Request) (any, error) {
	transcript := stringField(req, "transcript")
	if transcript == "" {
		return nil, missing("generate checklist", "transcript")
	}
	var raw []any
	if _, err := req.DecodeField("keyFrames", &raw); err != nil {
		return nil, invalid("generate checklist", "keyFrames", err)
	}
	keyFrames := make([]string, 0, len(raw))
	for _, frame := range raw {
		if frame == nil {
			continue
		}
		keyFrames = append(keyFrames, fmt.Sprint(frame))
	}
	return h.assistant.GenerateChecklist(ctx, transcript, keyFrames)
}

func (h *handlers) detectConfusion(ctx context.Context, req protocol.Request) (any, error) {
	var sample behavior.Sample
	present, err := req.DecodeField("userBehavior", &sample)
	if err != nil {
		return nil, invalid("detect confusion", "user behavior", err)
	}
	if !present {
		return nil, missing("detect confusion", "user behavior")
	}
	return h.assistant.DetectConfusion(ctx, sample)
}

func (h *handlers) getSettings(ctx context.Context, req protocol.Request) (any, error) {
	var keys []string
	present, err := req.DecodeField("keys", &keys)
	if err != nil {
		return nil, invalid("get settings", "keys", err)
	}
	if !present {
		return h.store.GetAll(ctx)
	}
	return h.store.GetMany(ctx, keys)
}

func (h *handlers) updateSettings(ctx context.Context, req protocol.Request) (any, error) {
	key := stringField(req, "key")
	if key == "" {
		return nil, missing("update settings", "key")
	}
	value, ok := req.Value("value")
	if !ok {
		return nil, missing("update settings", "value")
	}
	if err := h.store.Set(ctx, key, value, originOf(ctx)); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (h *handlers) toggleFeature(ctx context.Context, req protocol.Request) (any, error) {
	name := stringField(req, "featureName")
	if name == "" {
		return nil, missing("toggle feature", "feature name")
	}
	enabled, err := h.store.ToggleFeature(ctx, name, originOf(ctx))
	if err != nil {
		return nil, err
	}
	return map[string]any{"featureName": name, "enabled": enabled}, nil
}

func (h *handlers) recordInteraction(ctx context.Context, req protocol.Request) (any, error) {
	interactionType := stringField(req, "interactionType")
	if interactionType == "" {
		return nil, missing("record interaction", "interaction type")
	}
	if _, err := h.store.RecordInteraction(ctx, req.RequestID, interactionType, originOf(ctx)); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (h *handlers) extensionReady(ctx context.Context, req protocol.Request) (any, error) {
	url := stringField(req, "url")
	if url == "" {
		return nil, missing("extension ready", "url")
	}
	if _, err := h.store.RecordVideo(ctx, req.RequestID, url, originOf(ctx)); err != nil {
		return nil, err
	}
	return map[string]bool{"received": true}, nil
}
