package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidmentor/internal/ai"
	"vidmentor/internal/config"
	"vidmentor/internal/daemon"
	"vidmentor/internal/ipc"
	"vidmentor/internal/logging"
	"vidmentor/internal/port"
	"vidmentor/internal/router"
	"vidmentor/internal/settings"
	"vidmentor/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *settings.Store
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

// setupCLITestEnv runs an in-process daemon serving both sockets with the
// mock AI provider selected.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := newCLITestEnv(t)
	env.serve(t)
	return env
}

// newCLITestEnv prepares the configuration and settings store without
// starting the daemon.
func newCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")

	cfg := testsupport.NewConfig(t)
	base := cfg.Paths.DataDir
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenSettings(t, cfg)
	testsupport.UseMockAI(t, store)
	return &cliTestEnv{cfg: cfg, store: store, configPath: configPath, baseDir: base}
}

// serve starts the daemon and both socket servers.
func (e *cliTestEnv) serve(t *testing.T) {
	t.Helper()
	logger := logging.NewNop()
	gateway := ai.NewGateway(e.store, logger, ai.MockProvider{})
	d, err := daemon.New(e.cfg, e.store, router.New(e.store, gateway, logger), logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	ipcServer, err := ipc.NewServer(ctx, e.cfg.Paths.SocketPath, d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	ipcServer.Serve()
	portServer, err := port.NewServer(ctx, e.cfg.Paths.PortSocketPath, d, time.Second, logger)
	if err != nil {
		cancel()
		ipcServer.Close()
		d.Close()
		t.Fatalf("port.NewServer: %v", err)
	}
	portServer.Serve()

	t.Cleanup(func() {
		cancel()
		portServer.Close()
		ipcServer.Close()
		d.Close()
	})
	e.daemon = d
}

// run executes the CLI against the test daemon. Daemon auto-start is disabled
// since the test binary cannot act as the daemon executable.
func (e *cliTestEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, stdin, append([]string{"--config", e.configPath, "--no-start"}, args...)...)
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	testsupport.WriteFile(t, path, string(data))
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

func requireNotContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if strings.Contains(haystack, needle) {
		t.Fatalf("expected output to omit %q\n%s", needle, haystack)
	}
}

func loadSettings(t *testing.T, store *settings.Store) settings.Settings {
	t.Helper()
	current, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	return current
}

func writeFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
