package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autocut/autocut-api/internal/runner"
)

// writeStubFFmpeg writes a shell script that stands in for ffmpeg. Every
// invocation is appended to logPath; when failCopy is set, invocations
// containing "-c copy" exit 1. Successful invocations create their last
// argument as an empty output file.
func writeStubFFmpeg(t *testing.T, dir, logPath string, failCopy bool) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}

	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$*\" >> '" + logPath + "'\n"
	if failCopy {
		script += "case \"$*\" in *'-c copy'*) exit 1;; esac\n"
	}
	script += "for last; do :; done\n" +
		": > \"$last\"\n"

	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0700); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSelectJoinStrategy(t *testing.T) {
	tests := []struct {
		name      string
		crossfade float64
		segments  int
		ceiling   int
		want      joinStrategy
	}{
		{"zero crossfade uses hard cuts", 0, 5, 120, strategyHardCut},
		{"negative crossfade uses hard cuts", -1, 5, 120, strategyHardCut},
		{"crossfade within ceiling", 0.5, 5, 120, strategyCrossfade},
		{"crossfade at ceiling", 0.5, 120, 120, strategyCrossfade},
		{"crossfade above ceiling falls back", 0.5, 121, 120, strategyHardCut},
		{"single segment crossfade copies", 0.5, 1, 120, strategyCopy},
		{"single segment hard cut still concats", 0, 1, 120, strategyHardCut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectJoinStrategy(tt.crossfade, tt.segments, tt.ceiling)
			if got != tt.want {
				t.Errorf("selectJoinStrategy(%v, %d, %d) = %v, want %v",
					tt.crossfade, tt.segments, tt.ceiling, got, tt.want)
			}
		})
	}
}

func TestCrossfadeFilter_TwoSegments(t *testing.T) {
	filter, vOut, aOut := crossfadeFilter([]float64{10, 5}, 0.5)

	wantFilter := "[0:v][1:v]xfade=transition=fade:duration=0.5:offset=9.5[v1];" +
		"[0:a][1:a]acrossfade=d=0.5[a1]"
	if filter != wantFilter {
		t.Errorf("filter = %q, want %q", filter, wantFilter)
	}
	if vOut != "[v1]" || aOut != "[a1]" {
		t.Errorf("outputs = %q, %q, want [v1], [a1]", vOut, aOut)
	}
}

func TestCrossfadeFilter_ChainAccumulatesOffsets(t *testing.T) {
	filter, vOut, aOut := crossfadeFilter([]float64{10, 5, 8}, 1)

	// After merging segment 1: cum = 10 + 5 - 1 = 14, so segment 2's xfade
	// starts at 14 - 1 = 13.
	wantParts := []string{
		"[0:v][1:v]xfade=transition=fade:duration=1:offset=9[v1]",
		"[0:a][1:a]acrossfade=d=1[a1]",
		"[v1][2:v]xfade=transition=fade:duration=1:offset=13[v2]",
		"[a1][2:a]acrossfade=d=1[a2]",
	}
	if filter != strings.Join(wantParts, ";") {
		t.Errorf("filter = %q, want %q", filter, strings.Join(wantParts, ";"))
	}
	if vOut != "[v2]" || aOut != "[a2]" {
		t.Errorf("outputs = %q, %q, want [v2], [a2]", vOut, aOut)
	}
}

func TestCrossfadeFilter_OffsetNeverNegative(t *testing.T) {
	// First segment shorter than the crossfade itself.
	filter, _, _ := crossfadeFilter([]float64{0.2, 5}, 1)
	if !strings.Contains(filter, "offset=0[") {
		t.Errorf("expected offset clamped to 0, got %q", filter)
	}
}

func TestCrossfadeFilter_ChainGrowsLinearly(t *testing.T) {
	durations := make([]float64, 50)
	for i := range durations {
		durations[i] = 2
	}
	filter, vOut, _ := crossfadeFilter(durations, 0.5)

	if got := strings.Count(filter, "xfade=transition"); got != 49 {
		t.Errorf("video stages = %d, want 49", got)
	}
	if got := strings.Count(filter, "acrossfade"); got != 49 {
		t.Errorf("audio stages = %d, want 49", got)
	}
	if vOut != "[v49]" {
		t.Errorf("final video label = %q, want [v49]", vOut)
	}
}

func TestJoinHard_CopySucceedsWithoutRetry(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	f := NewFFmpeg(writeStubFFmpeg(t, dir, logPath, false), runner.New())

	seg0 := filepath.Join(dir, "seg_0000.mp4")
	seg1 := filepath.Join(dir, "seg_0001.mp4")
	for _, p := range []string{seg0, seg1} {
		if err := os.WriteFile(p, []byte("segment"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	var lines []string
	sink := func(line string) { lines = append(lines, line) }

	output := filepath.Join(dir, "joined.mp4")
	err := f.Join(context.Background(), []string{seg0, seg1}, []float64{1, 1}, 0, 0, output, sink)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	calls := readCalls(t, logPath)
	if len(calls) != 1 {
		t.Fatalf("got %d ffmpeg invocations %v, want 1", len(calls), calls)
	}
	if !strings.Contains(calls[0], "-c copy") {
		t.Errorf("invocation = %q, want stream copy", calls[0])
	}
	for _, line := range lines {
		if strings.Contains(line, "retrying with re-encode") {
			t.Errorf("unexpected retry after successful stream copy: %q", line)
		}
	}
}

func TestJoinHard_ReencodesWhenStreamCopyFails(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	f := NewFFmpeg(writeStubFFmpeg(t, dir, logPath, true), runner.New())

	seg0 := filepath.Join(dir, "seg_0000.mp4")
	seg1 := filepath.Join(dir, "seg_0001.mp4")
	for _, p := range []string{seg0, seg1} {
		if err := os.WriteFile(p, []byte("segment"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	var lines []string
	sink := func(line string) { lines = append(lines, line) }

	output := filepath.Join(dir, "joined.mp4")
	err := f.Join(context.Background(), []string{seg0, seg1}, []float64{1, 1}, 0, 0, output, sink)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("output file missing: %v", err)
	}

	calls := readCalls(t, logPath)
	if len(calls) != 2 {
		t.Fatalf("got %d ffmpeg invocations %v, want 2", len(calls), calls)
	}
	if !strings.Contains(calls[0], "-c copy") {
		t.Errorf("first invocation = %q, want stream copy", calls[0])
	}
	if !strings.Contains(calls[1], "libx264") {
		t.Errorf("second invocation = %q, want re-encode profile", calls[1])
	}

	retried := false
	for _, line := range lines {
		if strings.Contains(line, "retrying with re-encode") {
			retried = true
		}
	}
	if !retried {
		t.Error("expected the retry to be reported via sink")
	}
	if _, err := os.Stat(output + ".concat.txt"); !os.IsNotExist(err) {
		t.Errorf("concat manifest not removed, stat err = %v", err)
	}
}

func TestJoinHard_BothAttemptsFail(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")

	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$*\" >> '" + logPath + "'\n" +
		"exit 1\n"
	stub := filepath.Join(dir, "ffmpeg")
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
	if err := os.WriteFile(stub, []byte(script), 0700); err != nil {
		t.Fatal(err)
	}
	f := NewFFmpeg(stub, runner.New())

	seg := filepath.Join(dir, "seg_0000.mp4")
	if err := os.WriteFile(seg, []byte("segment"), 0600); err != nil {
		t.Fatal(err)
	}

	output := filepath.Join(dir, "joined.mp4")
	err := f.Join(context.Background(), []string{seg}, []float64{1}, 0, 0, output, runner.Discard)
	if err == nil {
		t.Fatal("expected error when both join attempts fail")
	}
	if !strings.Contains(err.Error(), "concat join") {
		t.Errorf("error = %v, want it to name the concat join", err)
	}
	if calls := readCalls(t, logPath); len(calls) != 2 {
		t.Errorf("got %d ffmpeg invocations %v, want 2", len(calls), calls)
	}
}

// readCalls returns the stub's logged invocations, one per line.
func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read invocation log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestWriteConcatManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")

	segments := []string{
		"/tmp/seg_0000.mp4",
		"/tmp/it's here/seg_0001.mp4",
	}
	if err := writeConcatManifest(path, segments); err != nil {
		t.Fatalf("writeConcatManifest() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	want := "file '/tmp/seg_0000.mp4'\n" +
		`file '/tmp/it'\''s here/seg_0001.mp4'` + "\n"
	if string(data) != want {
		t.Errorf("manifest = %q, want %q", string(data), want)
	}
}
