// Package media wraps the external ffmpeg/ffprobe tools behind the
// operations the silence-removal pipeline needs: duration probing, silence
// detection, segment cutting and joining.
package media

import (
	"context"

	"github.com/autocut/autocut-api/internal/interval"
	"github.com/autocut/autocut-api/internal/runner"
)

// Toolchain defines the external-tool operations the pipeline depends on.
// FFmpeg is the production implementation; tests substitute fakes so the
// orchestration logic can run without media tools installed.
type Toolchain interface {
	// ProbeDuration returns the media duration in seconds. An error means
	// the duration is unknown, not that the file is unusable.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// DetectSilence returns the silence intervals of the file's audio, in
	// emission order, streaming tool output to sink as it is parsed.
	DetectSilence(ctx context.Context, path string, thresholdDB, minSilence float64, sink runner.Sink) ([]interval.Interval, error)

	// CutSegment re-encodes the span of input into a new file at output.
	CutSegment(ctx context.Context, input, output string, span interval.Interval, sink runner.Sink) error

	// Join reassembles segments into output, with hard cuts or crossfades
	// depending on the crossfade duration.
	Join(ctx context.Context, segments []string, durations []float64, crossfade float64, maxCrossfade int, output string, sink runner.Sink) error
}

// Compile-time check that FFmpeg implements Toolchain.
var _ Toolchain = (*FFmpeg)(nil)
