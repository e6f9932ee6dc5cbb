package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/autocut/autocut-api/internal/runner"
)

// DefaultMaxCrossfadeSegments bounds the crossfade filter graph. Beyond this
// many segments the graph gets large enough to stall ffmpeg's filter
// compilation, so the joiner falls back to hard cuts.
const DefaultMaxCrossfadeSegments = 120

// joinStrategy identifies how a set of segments is reassembled.
type joinStrategy int

const (
	// strategyHardCut concatenates segments via the concat demuxer.
	strategyHardCut joinStrategy = iota
	// strategyCrossfade blends consecutive segments with xfade/acrossfade.
	strategyCrossfade
	// strategyCopy is the single-segment degenerate case of crossfading.
	strategyCopy
)

// selectJoinStrategy picks the join strategy for a crossfade setting and
// segment count. Crossfading only applies with more than one segment and at
// most ceiling segments; a single segment degenerates to a plain copy and an
// oversized chain falls back to hard cuts.
func selectJoinStrategy(crossfade float64, segments, ceiling int) joinStrategy {
	if crossfade <= 0 {
		return strategyHardCut
	}
	if segments == 1 {
		return strategyCopy
	}
	if segments > ceiling {
		return strategyHardCut
	}
	return strategyCrossfade
}

// Join reassembles the cut segments into a single file at output. The
// strategy follows the configured crossfade duration: zero means hard cuts
// via the concat demuxer, positive means a chained crossfade filter graph.
// maxCrossfade caps the crossfade chain length; zero or negative selects
// DefaultMaxCrossfadeSegments.
func (f *FFmpeg) Join(ctx context.Context, segments []string, durations []float64, crossfade float64, maxCrossfade int, output string, sink runner.Sink) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}
	if len(segments) != len(durations) {
		return ErrSegmentCount
	}
	if maxCrossfade <= 0 {
		maxCrossfade = DefaultMaxCrossfadeSegments
	}

	switch selectJoinStrategy(crossfade, len(segments), maxCrossfade) {
	case strategyCopy:
		sink("Single segment, copying without transitions...")
		return copyFile(segments[0], output)
	case strategyCrossfade:
		return f.joinCrossfade(ctx, segments, durations, crossfade, output, sink)
	default:
		if crossfade > 0 {
			sink(fmt.Sprintf("Too many segments for crossfade (%d > %d), falling back to hard cuts.", len(segments), maxCrossfade))
		}
		return f.joinHard(ctx, segments, output, sink)
	}
}

// joinHard concatenates segments with the concat demuxer. It first attempts
// a stream copy and retries once with the fixed re-encode profile when the
// copy fails, trading speed for container compatibility. The manifest is
// removed after the attempt regardless of outcome.
func (f *FFmpeg) joinHard(ctx context.Context, segments []string, output string, sink runner.Sink) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	manifest := output + ".concat.txt"
	if err := writeConcatManifest(manifest, segments); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}
	defer func() { _ = os.Remove(manifest) }()

	base := []string{
		"-hide_banner", "-y",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
	}

	sink("Concatenating (hard cuts)...")
	copyArgs := append(append([]string{}, base...), "-c", "copy", output)
	err := f.ffmpeg(ctx, copyArgs, sink)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	sink("Stream-copy concat failed, retrying with re-encode...")
	encArgs := append(append([]string{}, base...), encodeProfile...)
	encArgs = append(encArgs, output)
	if err := f.ffmpeg(ctx, encArgs, sink); err != nil {
		return fmt.Errorf("concat join: %w", err)
	}
	return nil
}

// joinCrossfade blends all segments into output through a single linear
// xfade/acrossfade chain built by crossfadeFilter.
func (f *FFmpeg) joinCrossfade(ctx context.Context, segments []string, durations []float64, crossfade float64, output string, sink runner.Sink) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	filter, vOut, aOut := crossfadeFilter(durations, crossfade)

	args := []string{"-hide_banner", "-y"}
	for _, seg := range segments {
		args = append(args, "-i", seg)
	}
	args = append(args,
		"-filter_complex", filter,
		"-map", vOut,
		"-map", aOut,
	)
	args = append(args, encodeProfile...)
	args = append(args, output)

	sink("Concatenating with crossfade transitions...")
	if err := f.ffmpeg(ctx, args, sink); err != nil {
		return fmt.Errorf("crossfade join: %w", err)
	}
	return nil
}

// crossfadeFilter builds the chained crossfade graph for the given segment
// durations. Segment 0's streams seed the accumulator; each further segment
// is blended in with a video xfade and an audio acrossfade, offset at
// max(0, cum-crossfade) where cum is the running length of everything merged
// so far. The result is a single linear chain, so graph size grows linearly
// with the segment count. Requires len(durations) >= 2.
func crossfadeFilter(durations []float64, crossfade float64) (filter, vOut, aOut string) {
	var parts []string
	cum := durations[0]
	vOut, aOut = "[0:v]", "[0:a]"

	for i := 1; i < len(durations); i++ {
		outV := fmt.Sprintf("[v%d]", i)
		outA := fmt.Sprintf("[a%d]", i)
		offset := max(0, cum-crossfade)
		parts = append(parts,
			fmt.Sprintf("%s[%d:v]xfade=transition=fade:duration=%s:offset=%s%s",
				vOut, i, seconds(crossfade), seconds(offset), outV),
			fmt.Sprintf("%s[%d:a]acrossfade=d=%s%s",
				aOut, i, seconds(crossfade), outA),
		)
		cum += durations[i] - crossfade
		vOut, aOut = outV, outA
	}
	return strings.Join(parts, ";"), vOut, aOut
}

// writeConcatManifest writes the concat demuxer manifest: one line per
// segment, with single quotes escaped per ffmpeg's quoting convention.
func writeConcatManifest(path string, segments []string) error {
	var b strings.Builder
	for _, seg := range segments {
		escaped := strings.ReplaceAll(seg, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return os.WriteFile(path, []byte(b.String()), 0600)
}
