// Package pipeline orchestrates one silence-removal run: probe the input's
// duration, detect silence, invert the silences into kept intervals, cut
// each kept interval into an independent segment file, and join the segments
// into the final output.
//
// A run executes strictly sequentially on the calling goroutine. The design
// assumes at most one run is active per Pipeline at a time: the cancellation
// context and the Runner's active-process slot are shared across all stages
// of a run so one cancel request stops whatever stage is executing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/autocut/autocut-api/internal/interval"
	"github.com/autocut/autocut-api/internal/media"
	"github.com/autocut/autocut-api/internal/runner"
)

// ErrNothingToKeep is returned when inversion yields zero kept intervals,
// i.e. the whole input is considered silence.
var ErrNothingToKeep = errors.New("nothing to keep: everything is considered silence")

// Stage identifies the currently executing pipeline stage.
type Stage string

const (
	StageProbing   Stage = "probing"
	StageDetecting Stage = "detecting"
	StageInverting Stage = "inverting"
	StageCutting   Stage = "cutting"
	StageJoining   Stage = "joining"
)

// Settings is the immutable-for-the-run configuration of one pipeline run.
type Settings struct {
	// ThresholdDB is the volume (dB) below which audio counts as silence.
	ThresholdDB float64
	// MinSilence is the minimum silence duration (s) worth cutting.
	MinSilence float64
	// Margin is extra time (s) kept around each silence so cuts do not
	// clip speech.
	Margin float64
	// MinClipLen drops kept intervals shorter than this (s).
	MinClipLen float64
	// Crossfade selects crossfade joins when positive (s); zero or
	// negative means hard cuts.
	Crossfade float64
}

// Notify reports stage transitions. During cutting, done/total carry the
// per-segment progress; other stages report 0/0.
type Notify func(stage Stage, done, total int)

// Result summarizes a completed run.
type Result struct {
	// OutputPath is where the joined output was written.
	OutputPath string
	// Duration is the probed input duration, 0 when unknown.
	Duration float64
	// Segments is the number of kept intervals that were cut and joined.
	Segments int
}

// Pipeline runs silence-removal jobs against a media toolchain.
type Pipeline struct {
	tools                media.Toolchain
	tempDir              string
	maxCrossfadeSegments int
	logger               *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxCrossfadeSegments overrides the crossfade chain ceiling.
func WithMaxCrossfadeSegments(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxCrossfadeSegments = n
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline. Segment files are created under tempDir (the
// system temp dir when empty) in a per-run directory that is removed when
// the run ends, whatever its outcome.
func New(tools media.Toolchain, tempDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		tools:                tools,
		tempDir:              tempDir,
		maxCrossfadeSegments: media.DefaultMaxCrossfadeSegments,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full pipeline for input, writing the joined result to
// output. Diagnostic lines from every external invocation stream to sink in
// emission order; stage transitions go to notify. Cancelling ctx stops the
// active external process and unwinds the run with context.Canceled, with
// all temporary segments cleaned up.
func (p *Pipeline) Run(ctx context.Context, input, output string, set Settings, sink runner.Sink, notify Notify) (*Result, error) {
	if sink == nil {
		sink = runner.Discard
	}
	if notify == nil {
		notify = func(Stage, int, int) {}
	}

	notify(StageProbing, 0, 0)
	duration, err := p.tools.ProbeDuration(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Unknown duration is a soft failure: margin and length filtering
		// degrade, but the run continues.
		sink("WARNING: could not determine input duration, proceeding without it.")
		p.logger.Warn("duration probe failed",
			slog.String("input", input),
			slog.String("error", err.Error()),
		)
		duration = 0
	} else {
		sink(fmt.Sprintf("Duration: %.2fs", duration))
	}

	notify(StageDetecting, 0, 0)
	sink("Detecting silence via silencedetect...")
	silences, err := p.tools.DetectSilence(ctx, input, set.ThresholdDB, set.MinSilence, sink)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("detect silence: %w", err)
	}
	sink(fmt.Sprintf("Detected %d silence interval(s).", len(silences)))

	notify(StageInverting, 0, 0)
	kept := interval.Invert(duration, silences, set.Margin, set.MinClipLen)
	sink(fmt.Sprintf("Keeping %d non-silent interval(s).", len(kept)))
	if len(kept) == 0 {
		sink("Nothing to keep (everything considered silence).")
		return nil, ErrNothingToKeep
	}

	segDir, err := os.MkdirTemp(p.tempDir, "autocut_segments_")
	if err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(segDir); err != nil {
			p.logger.Warn("segment cleanup failed",
				slog.String("dir", segDir),
				slog.String("error", err.Error()),
			)
		}
	}()

	segments, durations, err := p.cutAll(ctx, input, segDir, kept, duration, sink, notify)
	if err != nil {
		return nil, err
	}

	notify(StageJoining, 0, 0)
	err = p.tools.Join(ctx, segments, durations, set.Crossfade, p.maxCrossfadeSegments, output, sink)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("join segments: %w", err)
	}

	return &Result{
		OutputPath: output,
		Duration:   duration,
		Segments:   len(segments),
	}, nil
}

// cutAll cuts every kept interval into its own segment file, in order,
// aborting on the first failure. The cancellation signal is checked between
// successive cuts in addition to the per-invocation checks.
func (p *Pipeline) cutAll(ctx context.Context, input, segDir string, kept []interval.Interval, duration float64, sink runner.Sink, notify Notify) ([]string, []float64, error) {
	segments := make([]string, 0, len(kept))
	durations := make([]float64, 0, len(kept))

	for i, span := range kept {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		notify(StageCutting, i, len(kept))

		if span.Unbounded && duration > 0 {
			span = interval.Bounded(span.Start, duration)
		}

		seg := filepath.Join(segDir, fmt.Sprintf("seg_%04d.mp4", i))
		if err := p.tools.CutSegment(ctx, input, seg, span, sink); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, fmt.Errorf("cut interval %d: %w", i, err)
		}

		segLen := span.Length(duration)
		if span.Unbounded || segLen <= 0 {
			// The interval's own length is unknown; fall back to probing
			// the segment file so crossfade offsets stay correct.
			if d, err := p.tools.ProbeDuration(ctx, seg); err == nil {
				segLen = d
			} else {
				segLen = 0
			}
		}

		segments = append(segments, seg)
		durations = append(durations, segLen)
	}
	notify(StageCutting, len(kept), len(kept))
	return segments, durations, nil
}
