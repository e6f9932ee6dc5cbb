// Package runner executes external tools and streams their combined output
// line by line to a caller-supplied sink. It is the single owner of process
// lifetime for the pipeline: every ffmpeg/ffprobe invocation that produces
// user-visible output goes through Run, and cancellation or a direct
// Terminate call stops whatever is currently executing.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
)

// Exit codes returned by Run for failures that happen before the tool
// produces one of its own.
const (
	// CodeNotFound is returned when the executable cannot be located.
	CodeNotFound = 127
	// CodeFailure is returned for any other launch or runtime error.
	CodeFailure = 1
)

// Sink receives one line of process output at a time, in emission order.
// Lines are delivered synchronously: the next line is not read until the
// sink returns, which lets callers parse the stream live.
type Sink func(line string)

// Discard is a Sink that drops all output.
func Discard(string) {}

// Runner runs external commands. It tracks the currently active process so
// an external controller can terminate it directly; at most one process is
// active per Runner at a time.
type Runner struct {
	mu     sync.Mutex
	active *os.Process
}

// New creates a Runner.
func New() *Runner {
	return &Runner{}
}

// Run executes name with args in dir (empty means inherit), merging stdout
// and stderr into a single line stream delivered to sink. The context is
// checked at every line boundary; once it is done the process is killed
// best-effort and reading stops, discarding any output still buffered in
// the process.
//
// Run returns the process's real exit code, CodeNotFound when the executable
// cannot be located, or CodeFailure for any other launch error. Launch errors
// are reported through the sink before returning.
func (r *Runner) Run(ctx context.Context, name string, args []string, dir string, sink Sink) int {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	// One pipe for both streams so the sink observes output exactly as the
	// process interleaved it.
	pr, pw, err := os.Pipe()
	if err != nil {
		sink("ERROR: " + err.Error())
		return CodeFailure
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		sink("ERROR: " + err.Error())
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return CodeNotFound
		}
		return CodeFailure
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	r.setActive(cmd.Process)
	defer r.setActive(nil)

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanProgressLines)
	for scanner.Scan() {
		if ctx.Err() != nil {
			_ = cmd.Process.Kill()
			break
		}
		sink(scanner.Text())
	}
	_ = pr.Close()

	err = cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	sink("ERROR: " + err.Error())
	return CodeFailure
}

// scanProgressLines splits on "\n", "\r\n" and a bare "\r". ffmpeg emits
// encode statistics as carriage-return updates on a single line, so newline
// splitting would accumulate the whole stats stream as one token and
// overflow the scanner buffer on long encodes. A "\r\n" pair counts as a
// single terminator; a "\r" as the last byte of available data waits for
// more input so the pair is never split across reads.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Terminate kills the currently active process, if any. It is safe to call
// from another goroutine and is a no-op when nothing is running.
func (r *Runner) Terminate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		_ = r.active.Kill()
	}
}

func (r *Runner) setActive(p *os.Process) {
	r.mu.Lock()
	r.active = p
	r.mu.Unlock()
}
