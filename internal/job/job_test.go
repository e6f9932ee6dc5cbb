package job

import (
	"errors"
	"testing"

	"github.com/autocut/autocut-api/internal/pipeline"
)

func TestNew(t *testing.T) {
	set := testSettings()
	j := New(set)

	if j.ID == "" {
		t.Error("expected generated ID")
	}
	if j.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, j.Status)
	}
	if j.Settings != set {
		t.Errorf("expected settings %+v, got %+v", set, j.Settings)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"queued to running", StatusQueued, StatusRunning, false},
		{"queued to cancelled", StatusQueued, StatusCancelled, false},
		{"queued to completed", StatusQueued, StatusCompleted, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"running to completed", StatusRunning, StatusCompleted, false},
		{"running to failed", StatusRunning, StatusFailed, false},
		{"running to cancelled", StatusRunning, StatusCancelled, false},
		{"running to queued", StatusRunning, StatusQueued, true},
		{"completed is terminal", StatusCompleted, StatusRunning, true},
		{"failed is terminal", StatusFailed, StatusRunning, true},
		{"cancelled is terminal", StatusCancelled, StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New(testSettings())
			j.Status = tt.from

			err := j.TransitionTo(tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				if j.GetStatus() != tt.from {
					t.Errorf("status changed on rejected transition: %s", j.GetStatus())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if j.GetStatus() != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, j.GetStatus())
			}
		})
	}
}

func TestStart_SetsStartedAt(t *testing.T) {
	j := New(testSettings())

	if err := j.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}

func TestComplete(t *testing.T) {
	j := New(testSettings())
	_ = j.Start()

	if err := j.Complete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.GetStatus() != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, j.GetStatus())
	}
	if j.Progress != 100 {
		t.Errorf("expected progress 100, got %d", j.Progress)
	}
	if j.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestFail_RecordsError(t *testing.T) {
	j := New(testSettings())
	_ = j.Start()

	if err := j.Fail("ffmpeg exploded"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.GetStatus() != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, j.GetStatus())
	}
	if j.Error != "ffmpeg exploded" {
		t.Errorf("expected error message, got %q", j.Error)
	}
}

func TestCancel_FromQueue(t *testing.T) {
	j := New(testSettings())

	if err := j.Cancel(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.GetStatus() != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, j.GetStatus())
	}
	if !j.IsTerminal() {
		t.Error("cancelled job should be terminal")
	}
}

func TestSetStage_ClampsProgress(t *testing.T) {
	j := New(testSettings())

	j.SetStage(pipeline.StageCutting, 150)
	if j.Progress != 100 {
		t.Errorf("expected progress clamped to 100, got %d", j.Progress)
	}
	j.SetStage(pipeline.StageCutting, -5)
	if j.Progress != 0 {
		t.Errorf("expected progress clamped to 0, got %d", j.Progress)
	}
	if j.Stage != pipeline.StageCutting {
		t.Errorf("expected stage %s, got %s", pipeline.StageCutting, j.Stage)
	}
}

func TestAppendLog(t *testing.T) {
	j := New(testSettings())

	j.AppendLog("first")
	j.AppendLog("second")

	lines := j.LogLines()
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Errorf("unexpected log lines: %v", lines)
	}

	// Returned slice is a copy.
	lines[0] = "mutated"
	if j.LogLines()[0] != "first" {
		t.Error("LogLines should return a copy")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	j := New(testSettings())
	_ = j.Start()
	j.AppendLog("line")
	j.SetOutput("/tmp/out.mp4", "https://bucket.s3.amazonaws.com/out.mp4")

	c := j.Clone()
	if c.ID != j.ID || c.Status != j.Status || c.OutputPath != j.OutputPath {
		t.Error("clone should copy fields")
	}

	c.AppendLog("extra")
	_ = c.Complete()

	if len(j.LogLines()) != 1 {
		t.Error("mutating clone log should not affect original")
	}
	if j.GetStatus() != StatusRunning {
		t.Error("mutating clone status should not affect original")
	}
}
