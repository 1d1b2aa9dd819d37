package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"vidmentor/internal/ai"
	"vidmentor/internal/behavior"
	"vidmentor/internal/protocol"
	"vidmentor/internal/router"
	"vidmentor/internal/services"
	"vidmentor/internal/settings"
	"vidmentor/internal/testsupport"
)

func newRouter(t *testing.T) (*router.Router, *settings.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	gateway := ai.NewGateway(store, nil)
	return router.New(store, gateway, nil), store
}

func dispatch(t *testing.T, r *router.Router, typ protocol.MessageType, data map[string]any) protocol.Response {
	t.Helper()
	req := protocol.Request{Type: typ, Data: data, RequestID: "req-" + strings.ToLower(string(typ))}
	resp := r.Dispatch(context.Background(), req)
	if resp.RequestID != req.RequestID {
		t.Fatalf("response id %q does not echo request id %q", resp.RequestID, req.RequestID)
	}
	return resp
}

func TestGetSettingsReturnsAllDefaults(t *testing.T) {
	r, _ := newRouter(t)
	resp := dispatch(t, r, protocol.GetSettings, nil)
	var values map[string]json.RawMessage
	if err := resp.Decode(&values); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range settings.Keys() {
		if _, ok := values[key]; !ok {
			t.Fatalf("missing key %s in %v", key, values)
		}
	}
}

func TestGetSettingsWithKeys(t *testing.T) {
	r, _ := newRouter(t)
	resp := dispatch(t, r, protocol.GetSettings, map[string]any{"keys": []any{"extensionEnabled"}})
	var values map[string]any
	if err := resp.Decode(&values); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(values) != 1 || values["extensionEnabled"] != true {
		t.Fatalf("expected only extensionEnabled=true, got %v", values)
	}
}

func TestUpdateThenGetReadsBack(t *testing.T) {
	r, _ := newRouter(t)
	features := map[string]any{"objectHighlighting": false, "stepChecklist": true}
	resp := dispatch(t, r, protocol.UpdateSettings, map[string]any{"key": "features", "value": features})
	var ack map[string]bool
	if err := resp.Decode(&ack); err != nil || !ack["success"] {
		t.Fatalf("update failed: %+v (%v)", resp, err)
	}

	resp = dispatch(t, r, protocol.GetSettings, map[string]any{"keys": []any{"features"}})
	var values struct {
		Features map[string]bool `json:"features"`
	}
	if err := resp.Decode(&values); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(values.Features) != 2 || values.Features["objectHighlighting"] || !values.Features["stepChecklist"] {
		t.Fatalf("expected full replace of features, got %v", values.Features)
	}
}

func TestUnknownOperationFails(t *testing.T) {
	r, _ := newRouter(t)
	resp := dispatch(t, r, protocol.MessageType("UNKNOWN_OP"), nil)
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.ErrorKind != services.KindUnknownOperation || !strings.Contains(resp.Error, "UNKNOWN_OP") {
		t.Fatalf("unexpected failure: %+v", resp)
	}
	if !errors.Is(resp.Err(), services.ErrUnknownOperation) {
		t.Fatalf("expected rehydrated unknown operation error, got %v", resp.Err())
	}
}

func TestValidationMessagesNameTheField(t *testing.T) {
	r, _ := newRouter(t)
	tests := []struct {
		typ  protocol.MessageType
		want string
	}{
		{protocol.SimplifyText, "no text provided"},
		{protocol.GenerateChecklist, "no transcript provided"},
		{protocol.AnalyzeFrame, "no image data provided"},
		{protocol.UpdateSettings, "no key provided"},
		{protocol.ToggleFeature, "no feature name provided"},
		{protocol.RecordInteraction, "no interaction type provided"},
		{protocol.ExtensionReady, "no url provided"},
		{protocol.DetectConfusion, "no user behavior provided"},
	}
	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			resp := dispatch(t, r, tc.typ, map[string]any{})
			if resp.Success || resp.ErrorKind != services.KindValidation {
				t.Fatalf("expected validation failure, got %+v", resp)
			}
			if !strings.Contains(resp.Error, tc.want) {
				t.Fatalf("error %q does not mention %q", resp.Error, tc.want)
			}
		})
	}
}

func TestDetectConfusion(t *testing.T) {
	r, _ := newRouter(t)
	tests := []struct {
		sample   behavior.Sample
		confused bool
		score    float64
	}{
		{behavior.Sample{RewindCount: 3}, true, 6},
		{behavior.Sample{PauseCount: 2}, false, 2},
	}
	for _, tc := range tests {
		resp := dispatch(t, r, protocol.DetectConfusion, map[string]any{"userBehavior": tc.sample})
		var got ai.ConfusionAssessment
		if err := resp.Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.IsConfused != tc.confused || got.ConfusionScore != tc.score {
			t.Fatalf("sample %+v: got %+v", tc.sample, got)
		}
	}
}

func TestToggleFeatureAndRecordInteraction(t *testing.T) {
	r, store := newRouter(t)
	resp := dispatch(t, r, protocol.ToggleFeature, map[string]any{"featureName": "stepChecklist"})
	var toggled struct {
		FeatureName string `json:"featureName"`
		Enabled     bool   `json:"enabled"`
	}
	if err := resp.Decode(&toggled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if toggled.FeatureName != "stepChecklist" || toggled.Enabled {
		t.Fatalf("unexpected toggle result %+v", toggled)
	}

	req := protocol.Request{Type: protocol.RecordInteraction, Data: map[string]any{"interactionType": "step_breakdown"}, RequestID: "dup"}
	for range 2 {
		if resp := r.Dispatch(context.Background(), req); !resp.Success {
			t.Fatalf("record failed: %+v", resp)
		}
	}
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.UserData.TotalInterventions != 1 {
		t.Fatalf("redelivered request counted twice: %+v", loaded.UserData)
	}
}

func TestExtensionReady(t *testing.T) {
	r, _ := newRouter(t)
	resp := dispatch(t, r, protocol.ExtensionReady, map[string]any{"url": "https://video.example/watch?v=1"})
	var got map[string]bool
	if err := resp.Decode(&got); err != nil || !got["received"] {
		t.Fatalf("unexpected response %+v (%v)", resp, err)
	}
}

func TestProbeWithoutKeyReportsPresence(t *testing.T) {
	r, _ := newRouter(t)
	resp := dispatch(t, r, protocol.TestGemini, map[string]any{"frameDataUrl": "", "prompt": "hi"})
	var got ai.ProbeResult
	if err := resp.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.HasAPIKey || got.Provider != "gemini" {
		t.Fatalf("unexpected probe %+v", got)
	}
}

func TestSimplifyWithoutKeyIsConfigurationFailure(t *testing.T) {
	r, _ := newRouter(t)
	resp := dispatch(t, r, protocol.SimplifyText, map[string]any{"text": "entropy"})
	if resp.Success || resp.ErrorKind != services.KindConfiguration {
		t.Fatalf("expected configuration failure, got %+v", resp)
	}
}

type panickyAssistant struct{ *ai.Gateway }

func (panickyAssistant) Simplify(context.Context, string, string) (ai.SimplificationResult, error) {
	panic("boom")
}

func TestHandlerPanicBecomesFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	r := router.New(store, panickyAssistant{}, nil)
	resp := r.Dispatch(context.Background(), protocol.Request{Type: protocol.SimplifyText, Data: map[string]any{"text": "x"}, RequestID: "p1"})
	if resp.Success || resp.ErrorKind != services.KindInternal || !strings.Contains(resp.Error, "boom") {
		t.Fatalf("expected internal failure, got %+v", resp)
	}
}
