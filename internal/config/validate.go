package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.SocketPath != "" && c.Paths.SocketPath == c.Paths.PortSocketPath {
		return errors.New("paths.socket_path and paths.port_socket_path must differ")
	}
	return nil
}

func (c *Config) validateTransport() error {
	if c.Transport.RetryAttempts > 10 {
		return fmt.Errorf("transport.retry_attempts must be at most 10 (got %d)", c.Transport.RetryAttempts)
	}
	if c.Transport.FallbackTimeoutSeconds > c.Transport.PrimaryTimeoutSeconds {
		return errors.New("transport.fallback_timeout_seconds must not exceed transport.primary_timeout_seconds")
	}
	return nil
}

func (c *Config) validateProvider() error {
	parsed, err := url.Parse(c.Provider.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("provider.base_url must be an absolute URL (got %q)", c.Provider.BaseURL)
	}
	if c.Provider.RetryMaxMillis < c.Provider.RetryBaseMillis {
		return errors.New("provider.retry_max_ms must be greater than or equal to provider.retry_base_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
