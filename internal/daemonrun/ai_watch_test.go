package daemonrun

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"vidmentor/internal/settings"
	"vidmentor/internal/testsupport"
)

func TestLogAIChangesReportsProviderSwitch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSettings(t, cfg)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	sub := logAIChanges(store, logger)
	ctx := context.Background()
	if err := store.Set(ctx, settings.KeyExtensionEnabled, false, "popup"); err != nil {
		t.Fatalf("Set extensionEnabled: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unrelated key logged: %s", buf.String())
	}

	next := settings.AI{Provider: "gemini-sdk", APIKey: "secret-value", ModelVLM: "m", ModelLLM: "m"}
	if err := store.Set(ctx, settings.KeyAI, next, "options"); err != nil {
		t.Fatalf("Set ai: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"ai settings changed"`, `"provider":"gemini-sdk"`, `"key_present":true`, `"key_replaced":true`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "secret-value") {
		t.Fatalf("api key leaked into log: %s", out)
	}

	store.Unsubscribe(sub)
	buf.Reset()
	if err := store.Set(ctx, settings.KeyAI, settings.AI{Provider: "gemini"}, "options"); err != nil {
		t.Fatalf("Set ai: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unsubscribed handler still logging: %s", buf.String())
	}
}
