package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidmentor/internal/ai"
	"vidmentor/internal/behavior"
	"vidmentor/internal/protocol"
	"vidmentor/internal/services"
)

func newAssistCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSimplifyCommand(ctx),
		newChecklistCommand(ctx),
		newAnalyzeFrameCommand(ctx),
		newTestProviderCommand(ctx),
		newConfusionCommand(ctx),
		newRecordCommand(ctx),
		newReadyCommand(ctx),
	}
}

func newSimplifyCommand(ctx *commandContext) *cobra.Command {
	var file, level string
	cmd := &cobra.Command{
		Use:   "simplify [TEXT]",
		Short: "Rewrite text in plainer language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textInput(cmd, args, file)
			if err != nil {
				return err
			}
			data := map[string]any{"text": text}
			if level != "" {
				data["level"] = level
			}
			var result ai.SimplificationResult
			if err := ctx.call(cmd.Context(), protocol.SimplifyText, data, &result); err != nil {
				return err
			}
			return ctx.emit(cmd, result, func() error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, result.Simplified)
				if len(result.Definitions) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(result.Definitions))
				for _, def := range result.Definitions {
					rows = append(rows, []string{def.Term, def.Definition})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Term", "Definition"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from a file (- for stdin)")
	cmd.Flags().StringVar(&level, "level", "", "Simplification level (defaults to the preferences setting)")
	return cmd
}

func newChecklistCommand(ctx *commandContext) *cobra.Command {
	var transcript string
	var keyFrames []string
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Turn a transcript into step-by-step instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textInput(cmd, nil, transcript)
			if err != nil {
				return err
			}
			data := map[string]any{"transcript": text}
			if len(keyFrames) > 0 {
				data["keyFrames"] = keyFrames
			}
			var items ai.ChecklistResult
			if err := ctx.call(cmd.Context(), protocol.GenerateChecklist, data, &items); err != nil {
				return err
			}
			return ctx.emit(cmd, items, func() error {
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{item.ID.String(), item.Timestamp.String(), item.Text.String()})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Time", "Step"}, rows, []columnAlignment{alignRight, alignRight, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&transcript, "transcript", "t", "-", "Transcript file (- for stdin)")
	cmd.Flags().StringArrayVar(&keyFrames, "key-frame", nil, "Key frame description or timestamp (repeatable)")
	return cmd
}

func newAnalyzeFrameCommand(ctx *commandContext) *cobra.Command {
	var prompt string
	var width, height int
	cmd := &cobra.Command{
		Use:   "analyze-frame IMAGE",
		Short: "Detect the objects visible in a video frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataURL, err := imageDataURL(args[0])
			if err != nil {
				return err
			}
			data := map[string]any{
				"frameDataUrl": dataURL,
				"dimensions":   map[string]int{"width": width, "height": height},
			}
			if prompt != "" {
				data["prompt"] = prompt
			}
			var result ai.ObjectDetectionResult
			if err := ctx.call(cmd.Context(), protocol.AnalyzeFrame, data, &result); err != nil {
				return err
			}
			return ctx.emit(cmd, result, func() error {
				out := cmd.OutOrStdout()
				if len(result.Objects) == 0 {
					fmt.Fprintln(out, "No objects detected")
					return nil
				}
				rows := make([][]string, 0, len(result.Objects))
				for _, obj := range result.Objects {
					box := obj.BoundingBox
					rows = append(rows, []string{
						obj.Name,
						strconv.FormatFloat(obj.Confidence, 'f', 2, 64),
						fmt.Sprintf("%.0f,%.0f %.0fx%.0f", box.X, box.Y, box.Width, box.Height),
						obj.Description,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Object", "Confidence", "Box", "Description"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Extra instructions for the vision model")
	cmd.Flags().IntVar(&width, "width", 0, "Frame width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Frame height in pixels")
	return cmd
}

// probeFrame is a 1x1 PNG sent when test-provider is given no image.
const probeFrame = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func newTestProviderCommand(ctx *commandContext) *cobra.Command {
	var image, prompt string
	cmd := &cobra.Command{
		Use:   "test-provider",
		Short: "Check that the AI provider is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame := probeFrame
			if image != "" {
				var err error
				if frame, err = imageDataURL(image); err != nil {
					return err
				}
			}
			data := map[string]any{"frameDataUrl": frame}
			if prompt != "" {
				data["prompt"] = prompt
			}
			var result ai.ProbeResult
			if err := ctx.call(cmd.Context(), protocol.TestGemini, data, &result); err != nil {
				return err
			}
			return ctx.emit(cmd, result, func() error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Provider: %s\n", result.Provider)
				if result.Model != "" {
					fmt.Fprintf(out, "Model:    %s\n", result.Model)
				}
				fmt.Fprintf(out, "API key:  %s\n", yesNo(result.HasAPIKey))
				if result.Raw != "" {
					fmt.Fprintln(out, result.Raw)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "Frame to send instead of a blank pixel")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt to send with the frame")
	return cmd
}

func newConfusionCommand(ctx *commandContext) *cobra.Command {
	var sample behavior.Sample
	cmd := &cobra.Command{
		Use:   "confusion",
		Short: "Score a playback behavior sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			assessment, err := detectConfusion(cmd, ctx, sample)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, assessment, func() error {
				printAssessment(cmd.OutOrStdout(), assessment)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&sample.RewindCount, "rewinds", 0, "Rewinds observed")
	cmd.Flags().IntVar(&sample.PauseCount, "pauses", 0, "Pauses observed")
	cmd.Flags().IntVar(&sample.PlaybackSpeedChanges, "speed-changes", 0, "Playback speed changes observed")
	cmd.Flags().Float64Var(&sample.LastPosition, "position", 0, "Current playback position in seconds")
	return cmd
}

func newRecordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "record TYPE",
		Short: "Record an assistance interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.call(cmd.Context(), protocol.RecordInteraction, map[string]any{"interactionType": args[0]}, nil); err != nil {
				return err
			}
			return ctx.emit(cmd, map[string]bool{"success": true}, func() error {
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s\n", args[0])
				return nil
			})
		},
	}
}

func newReadyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ready URL",
		Short: "Announce that a video page is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Received bool `json:"received"`
			}
			if err := ctx.call(cmd.Context(), protocol.ExtensionReady, map[string]any{"url": args[0]}, &result); err != nil {
				return err
			}
			return ctx.emit(cmd, result, func() error {
				fmt.Fprintf(cmd.OutOrStdout(), "Received: %s\n", yesNo(result.Received))
				return nil
			})
		},
	}
}

func detectConfusion(cmd *cobra.Command, ctx *commandContext, sample behavior.Sample) (ai.ConfusionAssessment, error) {
	if sample.SegmentWatchTimes == nil {
		sample.SegmentWatchTimes = map[int]int{}
	}
	var assessment ai.ConfusionAssessment
	err := ctx.call(cmd.Context(), protocol.DetectConfusion, map[string]any{"userBehavior": sample}, &assessment)
	return assessment, err
}

func printAssessment(out io.Writer, a ai.ConfusionAssessment) {
	fmt.Fprintf(out, "Confused: %s (score %.1f)\n", yesNo(a.IsConfused), a.ConfusionScore)
	if a.Recommendation != "" {
		fmt.Fprintln(out, a.Recommendation)
	}
	for _, name := range a.SuggestedIntervention {
		fmt.Fprintf(out, "  - %s\n", interventionLabel(name))
	}
}

// interventionLabel turns "step_breakdown" into "Step Breakdown".
func interventionLabel(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// textInput resolves text from a positional argument, a file, or stdin.
func textInput(cmd *cobra.Command, args []string, file string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	var (
		data []byte
		err  error
	)
	switch file {
	case "":
		return "", services.Wrap(services.ErrValidation, "cli", "input", "no text given (pass it as an argument or use --file)", nil)
	case "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "cli", "input", "input is empty", nil)
	}
	return text, nil
}

func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
