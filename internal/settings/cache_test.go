package settings_test

import (
	"context"
	"encoding/json"
	"testing"

	"vidmentor/internal/settings"
)

func TestCacheReadThroughAndOriginFilter(t *testing.T) {
	fetches := 0
	backing := map[string]json.RawMessage{"extensionEnabled": json.RawMessage("true")}
	fetch := func(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
		fetches++
		out := map[string]json.RawMessage{}
		for _, k := range keys {
			out[k] = backing[k]
		}
		return out, nil
	}
	write := func(_ context.Context, key string, value any) error {
		raw, _ := json.Marshal(value)
		backing[key] = raw
		return nil
	}
	cache := settings.NewCache("cli-1", fetch, write)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := cache.Get(ctx, "extensionEnabled")
		if err != nil || string(raw) != "true" {
			t.Fatalf("Get: %s %v", raw, err)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected one fetch, got %d", fetches)
	}

	if err := cache.Set(ctx, "extensionEnabled", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cache.Apply(settings.Change{Key: "extensionEnabled", Origin: "cli-1"}) {
		t.Fatal("own-origin change should be ignored")
	}
	var enabled bool
	if err := cache.Decode(ctx, "extensionEnabled", &enabled); err != nil || enabled {
		t.Fatalf("expected written value, got %v %v", enabled, err)
	}
	if fetches != 1 {
		t.Fatalf("own write should not refetch, got %d fetches", fetches)
	}

	backing["extensionEnabled"] = json.RawMessage("true")
	if !cache.Apply(settings.Change{Key: "extensionEnabled", Origin: "background"}) {
		t.Fatal("foreign change should invalidate")
	}
	if cache.Cached("extensionEnabled") {
		t.Fatal("entry should be dropped")
	}
	if err := cache.Decode(ctx, "extensionEnabled", &enabled); err != nil || !enabled {
		t.Fatalf("expected refetched true, got %v %v", enabled, err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch, got %d fetches", fetches)
	}
}
