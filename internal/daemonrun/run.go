package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vidmentor/internal/ai"
	"vidmentor/internal/config"
	"vidmentor/internal/daemon"
	"vidmentor/internal/ipc"
	"vidmentor/internal/logging"
	"vidmentor/internal/port"
	"vidmentor/internal/preflight"
	"vidmentor/internal/router"
	"vidmentor/internal/settings"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is watched for logging level changes when non-empty.
	ConfigPath string
	// LogLevel overrides logging.level from the configuration.
	LogLevel string
	// IdleSuspend overrides runtime.idle_suspend_seconds when non-nil.
	IdleSuspend *time.Duration
}

// Run starts the vidmentor daemon and blocks until it receives a signal,
// is asked to shut down, or suspends itself after going idle.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, r.Name+": "+r.Detail)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	levelVar := new(slog.LevelVar)
	logCfg := *cfg
	if strings.TrimSpace(opts.LogLevel) != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(&logCfg, levelVar)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	seedKey := strings.TrimSpace(cfg.Provider.APIKey)
	store, err := settings.Open(signalCtx, cfg.Paths.SettingsPath,
		settings.WithLogger(logger),
		settings.WithInstallSeed(func(s *settings.Settings) {
			if seedKey != "" {
				s.AI.APIKey = seedKey
			}
		}))
	if err != nil {
		logger.Error("open settings store", logging.Error(err))
		return err
	}
	defer store.Close()
	defer store.Unsubscribe(logAIChanges(store, logger))
	if store.Installed() {
		logger.Info("settings installed with defaults",
			logging.String(logging.FieldEventType, "settings_installed"),
			logging.String("path", store.Path()),
			logging.Bool("api_key_seeded", seedKey != ""))
	}

	gateway := ai.NewGateway(store, logger, buildProviders(cfg)...)
	d, err := daemon.New(cfg, store, router.New(store, gateway, logger), logger, daemonOptions(opts)...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	portServer, err := port.NewServer(signalCtx, cfg.Paths.PortSocketPath, d, cfg.Keepalive(), logger)
	if err != nil {
		return fmt.Errorf("start port server: %w", err)
	}
	defer portServer.Close()
	portServer.Serve()

	if opts.ConfigPath != "" && strings.TrimSpace(opts.LogLevel) == "" {
		go watchLogLevel(signalCtx, opts.ConfigPath, levelVar, logger)
	}

	logger.Info("vidmentor daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.Paths.SocketPath),
		logging.String("port_socket", cfg.Paths.PortSocketPath),
		logging.Duration("idle_suspend", d.Status(signalCtx).IdleSuspend))

	select {
	case <-signalCtx.Done():
		logger.Info("vidmentor daemon shutting down", logging.String("reason", "signal"))
	case <-d.Done():
		logger.Info("vidmentor daemon shutting down", logging.String("reason", d.ShutdownReason()))
	}
	return nil
}

func daemonOptions(opts Options) []daemon.Option {
	if opts.IdleSuspend == nil {
		return nil
	}
	return []daemon.Option{daemon.WithIdleSuspend(*opts.IdleSuspend)}
}

func buildProviders(cfg *config.Config) []ai.Provider {
	p := cfg.Provider
	restOpts := []ai.RESTOption{ai.WithBaseURL(p.BaseURL)}
	if p.TimeoutSeconds > 0 {
		restOpts = append(restOpts, ai.WithHTTPClient(&http.Client{Timeout: time.Duration(p.TimeoutSeconds) * time.Second}))
	}
	if p.RetryMaxAttempts > 0 {
		restOpts = append(restOpts, ai.WithRetryMaxAttempts(p.RetryMaxAttempts))
	}
	if p.RetryBaseMillis > 0 && p.RetryMaxMillis > 0 {
		restOpts = append(restOpts, ai.WithRetryBackoff(
			time.Duration(p.RetryBaseMillis)*time.Millisecond,
			time.Duration(p.RetryMaxMillis)*time.Millisecond))
	}
	return []ai.Provider{
		ai.NewRESTProvider(restOpts...),
		ai.NewSDKProvider(p.BaseURL),
	}
}

// watchLogLevel applies logging.level edits without a restart. Other fields
// take effect on the next start.
func watchLogLevel(ctx context.Context, path string, levelVar *slog.LevelVar, logger *slog.Logger) {
	err := config.Watch(ctx, path, 0, func(cfg *config.Config, err error) {
		if err != nil {
			logging.WarnWithContext(logger, "config reload failed", "config_reload_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "previous logging level stays in effect"),
				logging.String(logging.FieldErrorHint, "fix the configuration file syntax"))
			return
		}
		level := logging.ParseLevel(cfg.Logging.Level)
		if level == levelVar.Level() {
			return
		}
		levelVar.Set(level)
		logger.Info("logging level changed",
			logging.String(logging.FieldEventType, "config_reloaded"),
			logging.String("level", level.String()))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(logger, "config watch stopped", "config_watch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "logging level changes require a restart"),
			logging.String(logging.FieldErrorHint, "check that the config directory exists"))
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
