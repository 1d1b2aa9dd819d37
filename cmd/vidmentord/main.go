// Command vidmentord runs the vidmentor background daemon in the foreground.
// It is what `vidmentor start` launches when installed as a service unit.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vidmentor/internal/config"
	"vidmentor/internal/daemonrun"
)

func main() {
	if err := newCommand().Execute(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "vidmentord: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath, logLevel string
	var idle time.Duration
	cmd := &cobra.Command{
		Use:           "vidmentord",
		Short:         "Run the vidmentor daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolved, exists, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts := daemonrun.Options{LogLevel: logLevel}
			if exists {
				opts.ConfigPath = resolved
			}
			if cmd.Flags().Changed("idle-suspend") {
				opts.IdleSuspend = &idle
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().DurationVar(&idle, "idle-suspend", 0, "Override runtime.idle_suspend_seconds (0 disables)")
	return cmd
}
