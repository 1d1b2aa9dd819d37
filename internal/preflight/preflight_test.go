package preflight

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidmentor/internal/settings"
	"vidmentor/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAllReportsMissingLogDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(cfg)
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("expected only the log directory to fail, got %+v", failed)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	if failed := Failed(RunAll(cfg)); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}
}

func TestCheckSocket(t *testing.T) {
	dir := t.TempDir()
	if CheckSocket("ipc", filepath.Join(dir, "absent.sock")).Passed {
		t.Fatal("missing socket should fail")
	}
	path := filepath.Join(dir, "live.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix listener unavailable: %v", err)
	}
	defer listener.Close()
	if result := CheckSocket("ipc", path); !result.Passed {
		t.Fatalf("expected listening socket to pass: %s", result.Detail)
	}
}

func TestCheckAISettings(t *testing.T) {
	cases := []struct {
		name   string
		cfg    settings.AI
		passed bool
		detail string
	}{
		{"mock", settings.AI{UseMockAI: true}, true, "mock"},
		{"missing key", settings.AI{Provider: "gemini"}, false, "missing"},
		{"placeholder", settings.AI{Provider: "gemini", APIKey: "YOUR_API_KEY_HERE"}, false, "placeholder"},
		{"configured", settings.AI{Provider: "gemini", APIKey: "AIzaReal", ModelVLM: "gemini-2.0-flash"}, true, "gemini-2.0-flash"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckAISettings(tc.cfg)
			if result.Passed != tc.passed || !strings.Contains(result.Detail, tc.detail) {
				t.Fatalf("unexpected result %+v", result)
			}
		})
	}
}
