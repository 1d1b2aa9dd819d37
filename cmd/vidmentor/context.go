package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidmentor/internal/config"
	"vidmentor/internal/daemonctl"
	"vidmentor/internal/logging"
	"vidmentor/internal/port"
	"vidmentor/internal/protocol"
	"vidmentor/internal/settings"
	"vidmentor/internal/transport"
)

const (
	originPrefix      = "cli"
	daemonWaitTimeout = 10 * time.Second
)

type globalFlags struct {
	config  string
	json    bool
	origin  string
	noStart bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	// configPath is empty when no configuration file exists.
	configPath string
	configErr  error

	// defaultOrigin names this invocation when --origin is not given. Each
	// process gets its own so it still sees changes made by other CLI runs.
	defaultOrigin string

	messengerOnce sync.Once
	messenger     *transport.Messenger
	logger        *slog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags, defaultOrigin: originPrefix + "-" + uuid.NewString()[:8]}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = path
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) origin() string {
	if origin := strings.TrimSpace(c.flags.origin); origin != "" {
		return origin
	}
	return c.defaultOrigin
}

func (c *commandContext) cliLogger() *slog.Logger {
	if c.logger == nil {
		c.logger = logging.NewCLI(c.configValue())
	}
	return c.logger
}

// transport returns the messenger shared by every request this invocation
// makes. Unless --no-start is given it launches the daemon on demand.
func (c *commandContext) transport() (*transport.Messenger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.messengerOnce.Do(func() {
		var opts []transport.Option
		if w := c.waker(cfg); w != nil {
			opts = append(opts, transport.WithWaker(w))
		}
		c.messenger = transport.NewFromConfig(cfg, c.origin(), c.cliLogger(), opts...)
	})
	return c.messenger, nil
}

// waker launches the daemon on demand. It is nil under --no-start.
func (c *commandContext) waker(cfg *config.Config) transport.Waker {
	if c.flags.noStart {
		return nil
	}
	exe, err := daemonExecutable()
	if err != nil {
		return nil
	}
	return daemonctl.EnsureRunning(cfg, exe, c.launchOptions(), daemonWaitTimeout)
}

// followSettings keeps cache in step with changes made by other contexts for
// as long as ctx lives, reconnecting across daemon restarts. The whole cache
// is dropped on every (re)connect since changes may have been missed.
func (c *commandContext) followSettings(ctx context.Context, cfg *config.Config, cache *settings.Cache, onChange func(change settings.Change, acted bool)) error {
	follower := port.ChangeFollower{
		SocketPath: cfg.Paths.PortSocketPath,
		Origin:     c.origin(),
		Logger:     c.cliLogger(),
		OnConnect:  cache.Reset,
	}
	if w := c.waker(cfg); w != nil {
		follower.Wake = w.Wake
	}
	return follower.Run(ctx, func(change settings.Change) {
		acted := cache.Apply(change)
		if onChange != nil {
			onChange(change, acted)
		}
	})
}

// call sends one request and decodes its data into target.
func (c *commandContext) call(ctx context.Context, t protocol.MessageType, data map[string]any, target any) error {
	m, err := c.transport()
	if err != nil {
		return err
	}
	return m.Call(ctx, t, data, target)
}

func (c *commandContext) launchOptions() daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{ConfigPath: strings.TrimSpace(c.flags.config)}
}

// emit prints v as JSON when --json is set, otherwise runs render.
func (c *commandContext) emit(cmd *cobra.Command, v any, render func() error) error {
	if c.flags.json {
		return writeJSON(cmd, v)
	}
	return render()
}

// writeJSON encodes v as indented JSON without HTML escaping, so values such
// as "<redacted>" print as stored.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
