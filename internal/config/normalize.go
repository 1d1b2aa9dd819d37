package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTransport()
	c.normalizeRuntime()
	c.normalizeProvider()
	if c.Monitor.TickSeconds <= 0 {
		c.Monitor.TickSeconds = defaultMonitorTickSeconds
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	derived := []struct {
		field *string
		name  string
		key   string
	}{
		{&c.Paths.SocketPath, defaultSocketName, "paths.socket_path"},
		{&c.Paths.PortSocketPath, defaultPortSocketName, "paths.port_socket_path"},
		{&c.Paths.SettingsPath, defaultSettingsName, "paths.settings_path"},
	}
	for _, d := range derived {
		if strings.TrimSpace(*d.field) == "" {
			*d.field = filepath.Join(c.Paths.DataDir, d.name)
		}
		if *d.field, err = expandPath(*d.field); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeTransport() {
	if c.Transport.RetryAttempts <= 0 {
		c.Transport.RetryAttempts = defaultRetryAttempts
	}
	if c.Transport.RetryBaseDelayMillis < 0 {
		c.Transport.RetryBaseDelayMillis = defaultRetryBaseDelayMillis
	}
	if c.Transport.PrimaryTimeoutSeconds <= 0 {
		c.Transport.PrimaryTimeoutSeconds = defaultPrimaryTimeoutSeconds
	}
	if c.Transport.FallbackTimeoutSeconds <= 0 {
		c.Transport.FallbackTimeoutSeconds = defaultFallbackTimeoutSeconds
	}
	if c.Transport.DialTimeoutSeconds <= 0 {
		c.Transport.DialTimeoutSeconds = defaultDialTimeoutSeconds
	}
}

func (c *Config) normalizeRuntime() {
	if c.Runtime.IdleSuspendSeconds < 0 {
		c.Runtime.IdleSuspendSeconds = 0
	}
	if c.Runtime.KeepaliveSeconds <= 0 {
		c.Runtime.KeepaliveSeconds = defaultKeepaliveSeconds
	}
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultProviderBaseURL
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Provider.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeoutSeconds
	}
	if c.Provider.RetryMaxAttempts <= 0 {
		c.Provider.RetryMaxAttempts = defaultProviderRetryAttempts
	}
	if c.Provider.RetryBaseMillis <= 0 {
		c.Provider.RetryBaseMillis = defaultProviderRetryBaseMs
	}
	if c.Provider.RetryMaxMillis <= 0 {
		c.Provider.RetryMaxMillis = defaultProviderRetryMaxMs
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	if level == "warning" {
		level = "warn"
	}
	c.Logging.Level = level
}
