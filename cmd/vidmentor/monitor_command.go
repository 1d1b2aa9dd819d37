package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidmentor/internal/ai"
	"vidmentor/internal/behavior"
	"vidmentor/internal/protocol"
	"vidmentor/internal/settings"
)

const confusionAssistInteraction = "confusion_assist"

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch playback events on stdin and offer help when the viewer looks confused",
		Long: "Reads one JSON object per line, for example {\"event\":\"timeupdate\",\"position\":42.5}.\n" +
			"Supported events: timeupdate, seeked, position, pause, play, playing, ratechange, tick.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			logger := ctx.cliLogger()
			cache := ctx.settingsCache()
			if follow {
				go func() {
					_ = ctx.followSettings(runCtx, cfg, cache, nil)
				}()
			}

			session := &monitorSession{cmd: cmd, ctx: ctx, cache: cache}
			monitor := behavior.NewMonitor(logger, behavior.WithTickInterval(cfg.MonitorTick()))
			sub := monitor.Subscribe(behavior.EventConfusionDetected, func(ev behavior.Event) {
				session.assist(runCtx, ev)
			})
			defer monitor.Unsubscribe(sub)
			monitor.Start(runCtx)
			defer monitor.Stop()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			line := 0
			for scanner.Scan() {
				line++
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				var ev behavior.PlaybackEvent
				if err := json.Unmarshal([]byte(text), &ev); err != nil {
					return fmt.Errorf("line %d: decode playback event: %w", line, err)
				}
				if err := monitor.Apply(ev); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read playback events: %w", err)
			}
			monitor.Check()
			return session.err()
		},
	}
	cmd.Flags().BoolVar(&follow, "follow-settings", true, "Refresh cached settings when another context changes them")
	return cmd
}

// monitorSession answers confusion trips. Trips can arrive from the ticker
// goroutine and the input loop, so output is serialized.
type monitorSession struct {
	cmd   *cobra.Command
	ctx   *commandContext
	cache *settings.Cache

	mu      sync.Mutex
	lastErr error
}

func (s *monitorSession) assist(ctx context.Context, ev behavior.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enabled, err := s.assistEnabled(ctx)
	if err != nil {
		s.lastErr = err
		return
	}
	if !enabled {
		return
	}

	var assessment ai.ConfusionAssessment
	if err := s.ctx.call(ctx, protocol.DetectConfusion, map[string]any{"userBehavior": ev.Sample}, &assessment); err != nil {
		s.lastErr = err
		return
	}
	if s.ctx.flags.json {
		_ = writeJSON(s.cmd, map[string]any{"position": ev.Position, "assessment": assessment})
	} else {
		out := s.cmd.OutOrStdout()
		fmt.Fprintf(out, "[%s] confusion check at %.1fs\n", ev.At.Local().Format("15:04:05"), ev.Position)
		printAssessment(out, assessment)
	}
	if !assessment.IsConfused {
		return
	}
	if err := s.ctx.call(ctx, protocol.RecordInteraction, map[string]any{"interactionType": confusionAssistInteraction}, nil); err != nil {
		s.lastErr = err
	}
}

// assistEnabled requires both the confusionDetection feature and proactive
// assistance.
func (s *monitorSession) assistEnabled(ctx context.Context) (bool, error) {
	var prefs settings.Preferences
	if err := s.cache.Decode(ctx, settings.KeyPreferences, &prefs); err != nil {
		return false, err
	}
	if !prefs.ProactiveAssistance {
		return false, nil
	}
	var features map[string]bool
	if err := s.cache.Decode(ctx, settings.KeyFeatures, &features); err != nil {
		return false, err
	}
	return features[settings.FeatureConfusionDetection], nil
}

func (s *monitorSession) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
