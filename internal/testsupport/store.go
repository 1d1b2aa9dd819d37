package testsupport

import (
	"context"
	"testing"

	"vidmentor/internal/config"
	"vidmentor/internal/settings"
)

// MustOpenSettings opens a settings.Store for tests and registers cleanup.
func MustOpenSettings(t testing.TB, cfg *config.Config, opts ...settings.Option) *settings.Store {
	t.Helper()

	store, err := settings.Open(context.Background(), cfg.Paths.SettingsPath, opts...)
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustSet writes a setting, failing the test on error.
func MustSet(t testing.TB, store *settings.Store, key string, value any) {
	t.Helper()

	if err := store.Set(context.Background(), key, value, "test"); err != nil {
		t.Fatalf("store.Set(%s): %v", key, err)
	}
}

// UseMockAI switches the store to the mock provider.
func UseMockAI(t testing.TB, store *settings.Store) {
	t.Helper()

	current, err := store.AI(context.Background())
	if err != nil {
		t.Fatalf("store.AI: %v", err)
	}
	current.UseMockAI = true
	MustSet(t, store, settings.KeyAI, current)
}
