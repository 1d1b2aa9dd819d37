package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidmentor/internal/config"
)

func TestLoadDefaultConfigDerivesPathsFromDataDir(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "vidmentor")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.SocketPath != filepath.Join(wantData, "vidmentor.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.Paths.PortSocketPath != filepath.Join(wantData, "vidmentor-port.sock") {
		t.Fatalf("unexpected port socket path: %q", cfg.Paths.PortSocketPath)
	}
	if cfg.Paths.SettingsPath != filepath.Join(wantData, "settings.db") {
		t.Fatalf("unexpected settings path: %q", cfg.Paths.SettingsPath)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Fatalf("expected provider key from env, got %q", cfg.Provider.APIKey)
	}
	if cfg.Transport.RetryAttempts != 3 {
		t.Fatalf("expected 3 transport attempts, got %d", cfg.Transport.RetryAttempts)
	}
	if cfg.PrimaryTimeout() != 45*time.Second || cfg.FallbackTimeout() != 15*time.Second {
		t.Fatalf("unexpected timeouts: primary=%s fallback=%s", cfg.PrimaryTimeout(), cfg.FallbackTimeout())
	}
	if cfg.MonitorTick() != 10*time.Second {
		t.Fatalf("unexpected monitor tick: %s", cfg.MonitorTick())
	}
	if cfg.IdleSuspend() != 30*time.Second {
		t.Fatalf("unexpected idle suspend: %s", cfg.IdleSuspend())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("GEMINI_API_KEY", "")

	configPath := filepath.Join(t.TempDir(), "vidmentor.toml")
	content := `[paths]
data_dir = "~/vm"
socket_path = "/tmp/custom.sock"

[transport]
retry_attempts = 5
primary_timeout_seconds = 60

[provider]
base_url = "http://127.0.0.1:9999/"
api_key = " file-key "

[logging]
format = "JSON"
level = "WARNING"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "vm") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.SocketPath != "/tmp/custom.sock" {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "vm", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Transport.RetryAttempts != 5 {
		t.Fatalf("unexpected retry attempts: %d", cfg.Transport.RetryAttempts)
	}
	if cfg.Transport.FallbackTimeoutSeconds != 15 {
		t.Fatalf("expected fallback default to survive, got %d", cfg.Transport.FallbackTimeoutSeconds)
	}
	if cfg.Provider.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Fatalf("unexpected api key: %q", cfg.Provider.APIKey)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "GEMINI_API_KEY") {
		t.Fatalf("sample config missing key guidance: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg = config.Default()
	cfg.Transport.FallbackTimeoutSeconds = cfg.Transport.PrimaryTimeoutSeconds + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when fallback exceeds primary timeout")
	}

	cfg = config.Default()
	cfg.Provider.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative provider url")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}

	cfg = config.Default()
	cfg.Paths.SocketPath = "/tmp/same.sock"
	cfg.Paths.PortSocketPath = "/tmp/same.sock"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when both sockets share a path")
	}

	cfg = config.Default()
	cfg.Provider.RetryMaxMillis = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when retry cap is below base")
	}
}

func TestWatchReportsReloadedLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, 20*time.Millisecond, func(cfg *config.Config, err error) {
			if err != nil {
				reloaded <- "error: " + err.Error()
				return
			}
			reloaded <- cfg.Logging.Level
		})
	}()

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case level := <-reloaded:
			if level != "debug" {
				t.Fatalf("expected reloaded level debug, got %q", level)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch returned error: %v", err)
			}
			return
		case <-ticker.C:
			// Rewrite until the watcher is registered and observes a change.
			if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
				t.Fatalf("rewrite config: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
