package media

import (
	"context"
	"fmt"

	"github.com/autocut/autocut-api/internal/interval"
	"github.com/autocut/autocut-api/internal/runner"
)

// CutSegment extracts the span from input into a new file at output,
// re-encoding with the fixed profile. Timestamps are written at six decimal
// places to avoid drift across many segments; an unbounded span cuts to the
// end of the file. The context is checked before launching ffmpeg so a
// cancelled run never starts another encode.
func (f *FFmpeg) CutSegment(ctx context.Context, input, output string, span interval.Interval, sink runner.Sink) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cut segment: %w", err)
	}

	args := []string{
		"-hide_banner", "-y",
		"-ss", fmt.Sprintf("%.6f", span.Start),
	}
	if !span.Unbounded {
		args = append(args, "-to", fmt.Sprintf("%.6f", span.End))
	}
	args = append(args, "-i", input)
	args = append(args, encodeProfile...)
	args = append(args, output)

	if span.Unbounded {
		sink(fmt.Sprintf("Cutting segment %.2fs -> end", span.Start))
	} else {
		sink(fmt.Sprintf("Cutting segment %.2fs -> %.2fs", span.Start, span.End))
	}
	if err := f.ffmpeg(ctx, args, sink); err != nil {
		return fmt.Errorf("cut segment at %.2f: %w", span.Start, err)
	}
	return nil
}
