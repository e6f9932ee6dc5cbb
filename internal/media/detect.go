package media

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/autocut/autocut-api/internal/interval"
	"github.com/autocut/autocut-api/internal/runner"
)

// silencedetect event markers on ffmpeg's diagnostic stream.
var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)
)

// silenceParser is a two-state parser for silencedetect output, fed one line
// at a time. It is awaiting a start marker until one arrives, then awaiting
// the matching end marker. Lines that violate the start/end alternation are
// ignored; silencedetect emits strictly alternating markers, and tolerating
// noise beats failing the whole run over a stray line.
type silenceParser struct {
	pending  float64
	awaiting bool // awaiting an end marker
	events   []interval.Interval
}

func (p *silenceParser) feed(line string) {
	if !p.awaiting {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				p.pending = v
				p.awaiting = true
			}
		}
		return
	}
	if m := silenceEndRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.events = append(p.events, interval.Bounded(p.pending, v))
			p.awaiting = false
		}
	}
}

// finish flushes a dangling start marker as a silence running to the end of
// the media.
func (p *silenceParser) finish() []interval.Interval {
	if p.awaiting {
		p.events = append(p.events, interval.ToEnd(p.pending))
		p.awaiting = false
	}
	return p.events
}

// DetectSilence runs ffmpeg's silencedetect filter over the file's audio and
// returns the silence intervals it reported, in emission order. Output lines
// are forwarded to sink as they arrive and parsed live off the same stream.
// The filter considers audio below thresholdDB silent once it lasts at least
// minSilence seconds. A non-zero ffmpeg exit is fatal.
func (f *FFmpeg) DetectSilence(ctx context.Context, path string, thresholdDB, minSilence float64, sink runner.Sink) ([]interval.Interval, error) {
	args := []string{
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", thresholdDB, minSilence),
		"-f", "null", "-",
	}

	parser := &silenceParser{}
	tap := func(line string) {
		sink(line)
		parser.feed(line)
	}

	if err := f.ffmpeg(ctx, args, tap); err != nil {
		return nil, fmt.Errorf("silencedetect: %w", err)
	}
	return parser.finish(), nil
}
