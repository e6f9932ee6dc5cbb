// Package main provides the autocut command line tool. It runs the
// silence-removal pipeline directly on a local file, without the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-api/internal/media"
	"github.com/autocut/autocut-api/internal/pipeline"
	"github.com/autocut/autocut-api/internal/runner"
)

var (
	inputPath   string
	outputPath  string
	ffmpegPath  string
	thresholdDB float64
	minSilence  float64
	margin      float64
	minClip     float64
	crossfade   float64
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "autocut",
	Short: "Remove silent passages from a video",
	Long: `autocut detects silent passages in a video with ffmpeg, cuts the
remaining clips, and joins them back together, either with hard cuts or
with crossfades.

Example:
  autocut --input talk.mp4 --threshold -35 --crossfade 0.25`,
	RunE:          runCut,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to source video file (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to output video file (default <input>_cut.<ext>)")
	rootCmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	rootCmd.Flags().Float64Var(&thresholdDB, "threshold", -30, "Silence threshold in dBFS")
	rootCmd.Flags().Float64Var(&minSilence, "min-silence", 1.35, "Minimum silence duration in seconds")
	rootCmd.Flags().Float64Var(&margin, "margin", 0.5, "Padding kept around speech in seconds")
	rootCmd.Flags().Float64Var(&minClip, "min-clip", 0.58, "Minimum kept clip length in seconds")
	rootCmd.Flags().Float64Var(&crossfade, "crossfade", 0, "Crossfade duration in seconds, 0 for hard cuts")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print ffmpeg output")
	_ = rootCmd.MarkFlagRequired("input")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCut(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input video: %w", err)
	}
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	// Ctrl-C cancels the run and stops the ffmpeg child.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	tools := media.NewFFmpeg(ffmpegPath, runner.New())
	pipe := pipeline.New(tools, os.TempDir(), pipeline.WithLogger(logger))

	set := pipeline.Settings{
		ThresholdDB: thresholdDB,
		MinSilence:  minSilence,
		Margin:      margin,
		MinClipLen:  minClip,
		Crossfade:   crossfade,
	}

	sink := runner.Discard
	if verbose {
		sink = func(line string) {
			fmt.Fprintln(os.Stderr, line)
		}
	}
	notify := func(stage pipeline.Stage, done, total int) {
		if stage == pipeline.StageCutting && total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s %d/%d", stage, done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
			return
		}
		fmt.Fprintf(os.Stderr, "%s...\n", stage)
	}

	result, err := pipe.Run(ctx, inputPath, outputPath, set, sink, notify)
	if err != nil {
		if errors.Is(err, pipeline.ErrNothingToKeep) {
			return fmt.Errorf("nothing left after removing silence, try a lower --threshold")
		}
		return err
	}

	fmt.Printf("Wrote %s (%d segments, %.1fs)\n", result.OutputPath, result.Segments, result.Duration)
	return nil
}

// defaultOutputPath derives the output name from the input, keeping its
// extension: talk.mp4 becomes talk_cut.mp4.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_cut" + ext
}
