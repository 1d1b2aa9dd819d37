package testsupport

import (
	"path/filepath"
	"testing"

	"vidmentor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "vm.sock")
	cfgVal.Paths.PortSocketPath = filepath.Join(base, "vm-port.sock")
	cfgVal.Paths.SettingsPath = filepath.Join(base, "settings.db")
	cfgVal.Transport.RetryBaseDelayMillis = 1
	cfgVal.Transport.PrimaryTimeoutSeconds = 5
	cfgVal.Transport.FallbackTimeoutSeconds = 2
	cfgVal.Transport.DialTimeoutSeconds = 1
	cfgVal.Runtime.IdleSuspendSeconds = 0
	cfgVal.Provider.APIKey = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProviderURL points the AI provider at a test server.
func WithProviderURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provider.BaseURL = url
	}
}

// WithProviderKey sets the key seeded into the settings store at install.
func WithProviderKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provider.APIKey = key
	}
}

// WithIdleSuspend enables daemon idle suspension after the given seconds.
func WithIdleSuspend(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Runtime.IdleSuspendSeconds = seconds
	}
}

// WithRetryAttempts overrides the transient retry count.
func WithRetryAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transport.RetryAttempts = attempts
	}
}
