package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket locations.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
	SocketPath     string `toml:"socket_path"`
	PortSocketPath string `toml:"port_socket_path"`
	SettingsPath   string `toml:"settings_path"`
}

// Transport tunes how foreground contexts reach the background daemon.
type Transport struct {
	RetryAttempts          int `toml:"retry_attempts"`
	RetryBaseDelayMillis   int `toml:"retry_base_delay_ms"`
	PrimaryTimeoutSeconds  int `toml:"primary_timeout_seconds"`
	FallbackTimeoutSeconds int `toml:"fallback_timeout_seconds"`
	DialTimeoutSeconds     int `toml:"dial_timeout_seconds"`
}

// Runtime controls the daemon lifecycle.
type Runtime struct {
	IdleSuspendSeconds int `toml:"idle_suspend_seconds"`
	KeepaliveSeconds   int `toml:"keepalive_seconds"`
}

// Provider holds AI endpoint connection settings. Model and key selection
// live in the settings store; these values cover the transport layer only.
type Provider struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	RetryMaxAttempts int    `toml:"retry_max_attempts"`
	RetryBaseMillis  int    `toml:"retry_base_ms"`
	RetryMaxMillis   int    `toml:"retry_max_ms"`
}

// Monitor configures the playback behavior monitor.
type Monitor struct {
	TickSeconds int `toml:"tick_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidmentor.
//
// Configuration sections by subsystem:
//   - Paths: data directory, logs, sockets, settings database
//   - Transport: retry and timeout policy for foreground requests
//   - Runtime: daemon idle suspension and keep-alive
//   - Provider: AI endpoint base URL, timeout, retry
//   - Monitor: behavior evaluation cadence
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Transport Transport `toml:"transport"`
	Runtime   Runtime   `toml:"runtime"`
	Provider  Provider  `toml:"provider"`
	Monitor   Monitor   `toml:"monitor"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidmentor.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file used by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "vidmentord.lock")
}

// PIDPath returns the pid file written by the running daemon.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "vidmentord.pid")
}

// DaemonLogPath returns the daemon's log file.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "vidmentord.log")
}

// PrimaryTimeout is the local timeout for a persistent-strategy request.
func (c *Config) PrimaryTimeout() time.Duration {
	return time.Duration(c.Transport.PrimaryTimeoutSeconds) * time.Second
}

// FallbackTimeout bounds the persistent retry sent after transient attempts fail.
func (c *Config) FallbackTimeout() time.Duration {
	return time.Duration(c.Transport.FallbackTimeoutSeconds) * time.Second
}

// RetryBaseDelay is multiplied by the attempt number between transient retries.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Transport.RetryBaseDelayMillis) * time.Millisecond
}

// DialTimeout bounds socket connection attempts.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Transport.DialTimeoutSeconds) * time.Second
}

// IdleSuspend is how long the daemon waits without traffic before exiting.
// Zero disables suspension.
func (c *Config) IdleSuspend() time.Duration {
	return time.Duration(c.Runtime.IdleSuspendSeconds) * time.Second
}

// Keepalive is the ping interval on persistent channels.
func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.Runtime.KeepaliveSeconds) * time.Second
}

// MonitorTick is the behavior evaluation interval.
func (c *Config) MonitorTick() time.Duration {
	return time.Duration(c.Monitor.TickSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
