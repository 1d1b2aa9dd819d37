package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
	"vidmentor/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change assistant settings",
	}
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsExportCommand(ctx))
	settingsCmd.AddCommand(newSettingsImportCommand(ctx))
	settingsCmd.AddCommand(newSettingsWatchCommand(ctx))
	return settingsCmd
}

// fetchSettings issues GET_SETTINGS. An empty key list returns the whole record.
func (c *commandContext) fetchSettings(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	var data map[string]any
	if len(keys) > 0 {
		data = map[string]any{"keys": keys}
	}
	values := make(map[string]json.RawMessage)
	if err := c.call(ctx, protocol.GetSettings, data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *commandContext) writeSetting(ctx context.Context, key string, value any) error {
	return c.call(ctx, protocol.UpdateSettings, map[string]any{"key": key, "value": value}, nil)
}

// settingsCache returns a read-through cache bound to this invocation's origin.
func (c *commandContext) settingsCache() *settings.Cache {
	return settings.NewCache(c.origin(), c.fetchSettings, c.writeSetting)
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key...]",
		Short: "Show settings values",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range args {
				if !settings.KnownKey(key) {
					return unknownKey(key)
				}
			}
			values, err := ctx.fetchSettings(cmd.Context(), args)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, values, func() error {
				fmt.Fprintln(cmd.OutOrStdout(), renderSettings(values))
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Replace one top-level settings value",
		Long:  "VALUE is parsed as JSON; anything that does not parse is stored as a string.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !settings.KnownKey(key) {
				return unknownKey(key)
			}
			value := parseValue(args[1])
			if err := ctx.writeSetting(cmd.Context(), key, value); err != nil {
				return err
			}
			return ctx.emit(cmd, map[string]any{"key": key, "success": true}, func() error {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", key)
				return nil
			})
		},
	}
}

func newSettingsExportCommand(ctx *commandContext) *cobra.Command {
	var showKey bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the settings record as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := ctx.fetchSettings(cmd.Context(), nil)
			if err != nil {
				return err
			}
			current, err := settings.FromValues(values)
			if err != nil {
				return fmt.Errorf("decode settings: %w", err)
			}
			return settings.EncodeYAML(cmd.OutOrStdout(), current, !showKey)
		},
	}
	cmd.Flags().BoolVar(&showKey, "show-key", false, "Include the provider API key instead of a placeholder")
	return cmd
}

func newSettingsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Apply settings from a YAML export",
		Long:  "Keys present in FILE replace the stored values. A redacted API key keeps the stored one.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read settings file: %w", err)
			}
			values, err := settings.DecodeYAML(bytes.NewReader(data))
			if err != nil {
				return err
			}
			if raw, ok := values[settings.KeyAI]; ok {
				var stored settings.AI
				cache := ctx.settingsCache()
				if err := cache.Decode(cmd.Context(), settings.KeyAI, &stored); err != nil {
					return err
				}
				if values[settings.KeyAI], err = settings.KeepRedactedKey(raw, stored.APIKey); err != nil {
					return err
				}
			}

			applied := make([]string, 0, len(values))
			for _, key := range settings.Keys() {
				raw, ok := values[key]
				if !ok {
					continue
				}
				if err := ctx.writeSetting(cmd.Context(), key, raw); err != nil {
					return fmt.Errorf("import %s: %w", key, err)
				}
				applied = append(applied, key)
			}
			return ctx.emit(cmd, map[string]any{"applied": applied}, func() error {
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No settings keys found")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", strings.Join(applied, ", "))
				return nil
			})
		},
	}
}

func newSettingsWatchCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print settings changes as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cache := ctx.settingsCache()
			// The first read starts the daemon when needed.
			for _, key := range settings.Keys() {
				if _, err := cache.Get(runCtx, key); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			err = ctx.followSettings(runCtx, cfg, cache, func(change settings.Change, acted bool) {
				if !acted && !all {
					return
				}
				current, getErr := cache.Get(runCtx, change.Key)
				if getErr != nil {
					current = change.New
				}
				if ctx.flags.json {
					_ = writeJSON(cmd, change)
					return
				}
				fmt.Fprintf(out, "%s  %s changed by %s: %s\n",
					change.At.Local().Format("15:04:05"), change.Key, originLabel(change.Origin), compactJSON(current))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include changes made with this invocation's --origin")
	return cmd
}

func renderSettings(values map[string]json.RawMessage) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	order := settings.Keys()
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, indentJSON(values[key])})
	}
	return renderTable([]string{"Key", "Value"}, rows, nil)
}

func parseValue(input string) any {
	var value any
	if err := json.Unmarshal([]byte(input), &value); err == nil {
		return value
	}
	return input
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func originLabel(origin string) string {
	if origin == "" {
		return "unknown"
	}
	return origin
}

func unknownKey(key string) error {
	return services.Wrap(services.ErrValidation, "cli", "settings",
		fmt.Sprintf("unknown settings key %q (known: %s)", key, strings.Join(settings.Keys(), ", ")), nil)
}

func newFeatureCommand(ctx *commandContext) *cobra.Command {
	featureCmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage assistant features",
	}
	featureCmd.AddCommand(&cobra.Command{
		Use:   "toggle NAME",
		Short: "Flip one feature on or off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				FeatureName string `json:"featureName"`
				Enabled     bool   `json:"enabled"`
			}
			if err := ctx.call(cmd.Context(), protocol.ToggleFeature, map[string]any{"featureName": args[0]}, &result); err != nil {
				return err
			}
			return ctx.emit(cmd, result, func() error {
				state := "disabled"
				if result.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", result.FeatureName, state)
				return nil
			})
		},
	})
	return featureCmd
}
