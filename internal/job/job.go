// Package job provides the Job aggregate for silence-removal runs. It
// includes the Job entity with its state machine, the repository port for
// persistence, and the service that executes runs on a single worker.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/autocut/autocut-api/internal/job/id"
	"github.com/autocut/autocut-api/internal/pipeline"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job is waiting for the worker.
	StatusQueued Status = "IN_QUEUE"
	// StatusRunning indicates the pipeline is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the run finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the run encountered an error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was aborted by the user. A clean
	// stop, not a failure.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one silence-removal run. The settings snapshot is taken at
// creation and never changes for the life of the run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Stage is the pipeline stage currently executing (empty outside RUNNING).
	Stage pipeline.Stage
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the run failed.
	Error string
	// Settings is the pipeline configuration for this run.
	Settings pipeline.Settings
	// InputPath is the path to the uploaded source video.
	InputPath string
	// OutputPath is the path to the final output video.
	OutputPath string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string
	// Log holds the run's diagnostic lines in emission order.
	Log []string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when the run started.
	StartedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(settings pipeline.Settings) *Job {
	now := time.Now()
	return &Job{
		ID:        id.Generate(),
		Status:    StatusQueued,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID creates a new Job with the specified ID. Useful for testing.
func NewWithID(jobID string, settings pipeline.Settings) *Job {
	j := New(settings)
	j.ID = jobID
	return j
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED with full progress.
func (j *Job) Complete() error {
	if err := j.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	j.mu.Lock()
	j.Progress = 100
	j.mu.Unlock()
	return nil
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStage records the currently executing pipeline stage and progress.
func (j *Job) SetStage(stage pipeline.Stage, progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// AppendLog appends one diagnostic line to the run's log.
func (j *Job) AppendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Log = append(j.Log, line)
}

// LogLines returns a copy of the run's log.
func (j *Job) LogLines() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, len(j.Log))
	copy(out, j.Log)
	return out
}

// SetOutput sets the output video path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	logLines := make([]string, len(j.Log))
	copy(logLines, j.Log)

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Stage:       j.Stage,
		Progress:    j.Progress,
		Error:       j.Error,
		Settings:    j.Settings,
		InputPath:   j.InputPath,
		OutputPath:  j.OutputPath,
		PushToS3:    j.PushToS3,
		VideoURL:    j.VideoURL,
		Log:         logLines,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
