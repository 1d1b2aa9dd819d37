package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vidmentor/internal/daemonctl"
	"vidmentor/internal/daemonrun"
	"vidmentor/internal/ipc"
	"vidmentor/internal/preflight"
	"vidmentor/internal/protocol"
	"vidmentor/internal/settings"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var idle time.Duration
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the vidmentor daemon in the foreground (internal)",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{ConfigPath: ctx.configPath, LogLevel: logLevel}
			if cmd.Flags().Changed("idle-suspend") {
				opts.IdleSuspend = &idle
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().DurationVar(&idle, "idle-suspend", 0, "Override runtime.idle_suspend_seconds (0 disables)")
	return cmd
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the vidmentor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.configValue(), exe, ctx.launchOptions(), daemonWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the vidmentor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed unresponsive daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			status, err := daemonctl.Status(cmd.Context(), cfg)
			if err != nil && !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				return err
			}
			running := status != nil && status.Running
			checks := daemonctl.SystemChecks(cfg, running)

			var aiCheck *preflight.Result
			if running {
				var values map[string]settings.AI
				if callErr := ctx.call(cmd.Context(), protocol.GetSettings, map[string]any{"keys": []string{settings.KeyAI}}, &values); callErr == nil {
					result := preflight.CheckAISettings(values[settings.KeyAI])
					aiCheck = &result
				}
			}

			view := statusView{Running: running, Daemon: status, Checks: checks, AI: aiCheck}
			return ctx.emit(cmd, view, func() error {
				renderStatus(cmd, view)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

type statusView struct {
	Running bool                `json:"running"`
	Daemon  *ipc.StatusResponse `json:"daemon,omitempty"`
	Checks  []preflight.Result  `json:"checks"`
	AI      *preflight.Result   `json:"ai,omitempty"`
}

func renderStatus(cmd *cobra.Command, view statusView) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	writeSectionHeader(stdout, "Daemon", colorize)
	if !view.Running {
		fmt.Fprintln(stdout, statusLine("vidmentor", statusWarn, "Not running (run `vidmentor start`)", colorize))
	} else {
		d := view.Daemon
		fmt.Fprintln(stdout, statusLine("vidmentor", statusOK, fmt.Sprintf("Running (pid %d)", d.PID), colorize))
		idle := "disabled"
		if d.IdleSuspend > 0 {
			idle = fmt.Sprintf("after %.0fs idle (idle %.0fs)", d.IdleSuspend, d.IdleSeconds)
		}
		fmt.Fprintln(stdout, statusLine("Suspend", statusInfo, idle, colorize))
		rows := [][]string{
			{"Open channels", strconv.Itoa(d.OpenChannels)},
			{"In flight", strconv.Itoa(d.InFlight)},
			{"Dispatched", strconv.FormatUint(d.Dispatched, 10)},
		}
		fmt.Fprintln(stdout, renderTable([]string{"Activity", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	fmt.Fprintln(stdout)

	writeSectionHeader(stdout, "Checks", colorize)
	for _, check := range view.Checks {
		fmt.Fprintln(stdout, checkLine(check, statusError, colorize))
	}
	if view.AI != nil {
		fmt.Fprintln(stdout, checkLine(*view.AI, statusWarn, colorize))
	}
}
