package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"vidmentor/internal/ai"
	"vidmentor/internal/settings"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSocket reports whether a daemon socket is present at path.
func CheckSocket(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (not listening)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.Mode()&os.ModeSocket == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a socket)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (listening)", path)}
}

// CheckAISettings verifies that AI calls can be made with the stored settings
// without contacting the provider.
func CheckAISettings(cfg settings.AI) Result {
	const name = "AI provider"
	if cfg.UseMockAI {
		return Result{Name: name, Passed: true, Detail: "mock responses enabled"}
	}
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		provider = ai.ProviderGemini
	}
	if err := ai.ValidateAPIKey(cfg.APIKey); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (API key missing or placeholder)", provider)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (key configured, model %s)", provider, cfg.ModelVLM)}
}
