package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/autocut/autocut-api/internal/runner"
)

// Static errors for media operations.
var (
	// ErrNoSegments is returned when a join is requested with no segments.
	ErrNoSegments = errors.New("no segments provided")
	// ErrSegmentCount is returned when segment paths and durations disagree.
	ErrSegmentCount = errors.New("segment paths and durations must have equal length")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// Fixed re-encode profile used for segment cuts, the re-encode join fallback
// and the crossfade join. Copy-mode cuts are not frame-accurate at arbitrary
// timestamps, so cut accuracy wins over speed and size here.
var encodeProfile = []string{
	"-c:v", "libx264", "-crf", "18", "-preset", "veryfast",
	"-pix_fmt", "yuv420p",
	"-c:a", "aac", "-b:a", "192k",
}

// FFmpeg drives the ffmpeg and ffprobe CLIs for the silence-removal
// pipeline: probing duration, detecting silence, cutting segments and
// joining them. Long-running invocations stream their output through the
// shared Runner so callers see diagnostics live and can cancel mid-run.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	run         *runner.Runner
}

// NewFFmpeg creates an FFmpeg toolchain. If ffmpegPath is empty it defaults
// to "ffmpeg" (found via PATH). ffprobe is resolved to a sibling of a custom
// ffmpeg binary when one exists, otherwise found via PATH.
func NewFFmpeg(ffmpegPath string, run *runner.Runner) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if run == nil {
		run = runner.New()
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: resolveFFprobe(ffmpegPath),
		run:         run,
	}
}

// resolveFFprobe prefers an ffprobe binary sitting next to a custom ffmpeg
// path, falling back to PATH lookup.
func resolveFFprobe(ffmpegPath string) string {
	base := filepath.Base(ffmpegPath)
	if ffmpegPath != "ffmpeg" && strings.HasPrefix(base, "ffmpeg") {
		cand := filepath.Join(filepath.Dir(ffmpegPath), strings.Replace(base, "ffmpeg", "ffprobe", 1))
		if _, err := os.Stat(cand); err == nil {
			return cand
		}
	}
	return "ffprobe"
}

// ProbeDuration returns the container duration of a media file in seconds.
// It queries only the format duration field via ffprobe. Callers that can
// proceed without a duration should treat an error as "unknown duration"
// rather than aborting.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// FFmpegError represents a failed ffmpeg invocation, including its exit code
// and arguments. The diagnostic text itself has already been delivered
// through the sink.
type FFmpegError struct {
	Args []string
	Code int
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg exited with code %d (args: %v)", e.Code, e.Args)
}

// ffmpeg runs the ffmpeg binary through the Runner with output streamed to
// sink, translating non-zero exits into an FFmpegError. A cancelled context
// is reported as the context's error, not a tool failure.
func (f *FFmpeg) ffmpeg(ctx context.Context, args []string, sink runner.Sink) error {
	code := f.run.Run(ctx, f.ffmpegPath, args, "", sink)
	if ctx.Err() != nil {
		return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
	}
	if code != 0 {
		return &FFmpegError{Args: args, Code: code}
	}
	return nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// seconds formats a float for embedding in a filter graph without trailing
// zeros or exponent notation.
func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
