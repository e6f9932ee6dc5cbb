package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/autocut/autocut-api/internal/pipeline"
	"github.com/autocut/autocut-api/internal/runner"
	"github.com/autocut/autocut-api/internal/storage"
)

// ErrJobFinished is returned when cancelling a job that already reached a
// terminal state.
var ErrJobFinished = errors.New("job already finished")

// ErrJobRunning is returned when deleting a job that is still executing.
var ErrJobRunning = errors.New("job is running, cancel it first")

// Processor executes one silence-removal run. *pipeline.Pipeline is the
// production implementation; tests substitute a fake.
type Processor interface {
	Run(ctx context.Context, input, output string, set pipeline.Settings, sink runner.Sink, notify pipeline.Notify) (*pipeline.Result, error)
}

// Service orchestrates job lifecycle: accepting uploads, executing the
// pipeline on a single worker, and delivering results. Runs are serialized
// so only one ffmpeg pipeline touches the machine at a time.
type Service struct {
	repo   Repository
	proc   Processor
	store  storage.Storage
	logger *slog.Logger

	// runMu serializes pipeline execution.
	runMu sync.Mutex

	// mu guards active, the cancel functions of jobs a worker has claimed.
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewService creates a job service.
func NewService(repo Repository, proc Processor, store storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		proc:   proc,
		store:  store,
		logger: logger,
		active: make(map[string]context.CancelFunc),
	}
}

// CreateJob stores the uploaded video and enqueues a new job for it.
func (s *Service) CreateJob(ctx context.Context, video io.Reader, set pipeline.Settings, pushToS3 bool) (*Job, error) {
	inputPath, err := s.store.SaveTemp(ctx, "input", video)
	if err != nil {
		return nil, fmt.Errorf("save input video: %w", err)
	}

	j := New(set)
	j.InputPath = inputPath
	j.PushToS3 = pushToS3

	if err := s.repo.Save(ctx, j); err != nil {
		_ = s.store.CleanupTemp(ctx, []string{inputPath})
		return nil, fmt.Errorf("save job: %w", err)
	}

	s.logger.Info("job created", "job_id", j.ID, "input", inputPath, "push_to_s3", pushToS3)
	return j.Clone(), nil
}

// ProcessExistingJob runs the pipeline for a previously created job. It
// blocks until the run reaches a terminal state, so callers normally invoke
// it from a goroutine with a context detached from the request.
func (s *Service) ProcessExistingJob(ctx context.Context, jobID string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.active[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, jobID)
		s.mu.Unlock()
	}()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	// Re-read after acquiring the run lock. The job may have been cancelled
	// while waiting in the queue.
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.GetStatus() != StatusQueued || runCtx.Err() != nil {
		return nil
	}

	if err := j.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save job %s: %w", jobID, err)
	}

	s.logger.Info("job started", "job_id", jobID)

	outputPath := filepath.Join(filepath.Dir(j.InputPath), jobID+"_cut.mp4")

	sink := func(line string) {
		j.AppendLog(line)
	}
	notify := func(stage pipeline.Stage, done, total int) {
		j.SetStage(stage, progressFor(stage, done, total))
		_ = s.repo.Save(ctx, j)
	}

	result, err := s.proc.Run(runCtx, j.InputPath, outputPath, j.Settings, sink, notify)
	switch {
	case errors.Is(err, context.Canceled):
		s.logger.Info("job cancelled", "job_id", jobID)
		if cErr := j.Cancel(); cErr != nil && !errors.Is(cErr, ErrInvalidTransition) {
			return cErr
		}
		_ = s.store.CleanupTemp(context.WithoutCancel(ctx), []string{j.InputPath})
		return s.repo.Save(context.WithoutCancel(ctx), j)

	case err != nil:
		s.logger.Error("job failed", "job_id", jobID, "error", err)
		if fErr := j.Fail(err.Error()); fErr != nil {
			return fErr
		}
		_ = s.store.CleanupTemp(ctx, []string{j.InputPath})
		if sErr := s.repo.Save(ctx, j); sErr != nil {
			return sErr
		}
		return err
	}

	videoURL := ""
	if j.PushToS3 {
		videoURL, err = s.uploadResult(ctx, jobID, result.OutputPath)
		if err != nil {
			s.logger.Error("job upload failed", "job_id", jobID, "error", err)
			if fErr := j.Fail(err.Error()); fErr != nil {
				return fErr
			}
			if sErr := s.repo.Save(ctx, j); sErr != nil {
				return sErr
			}
			return err
		}
	}

	j.SetOutput(result.OutputPath, videoURL)
	if err := j.Complete(); err != nil {
		return err
	}
	_ = s.store.CleanupTemp(ctx, []string{j.InputPath})

	s.logger.Info("job completed",
		"job_id", jobID,
		"output", result.OutputPath,
		"segments", result.Segments,
		"duration", result.Duration,
	)
	return s.repo.Save(ctx, j)
}

func (s *Service) uploadResult(ctx context.Context, jobID, outputPath string) (string, error) {
	f, err := s.store.LoadTemp(ctx, outputPath)
	if err != nil {
		return "", fmt.Errorf("open output video: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := s.store.UploadToS3(ctx, jobID+".mp4", f)
	if err != nil {
		return "", fmt.Errorf("upload output video: %w", err)
	}
	return url, nil
}

// progressFor maps pipeline stages onto a 0-100 scale. Cutting dominates the
// wall clock, so it gets the bulk of the range.
func progressFor(stage pipeline.Stage, done, total int) int {
	switch stage {
	case pipeline.StageProbing:
		return 5
	case pipeline.StageDetecting:
		return 15
	case pipeline.StageInverting:
		return 25
	case pipeline.StageCutting:
		if total <= 0 {
			return 30
		}
		return 30 + (60*done)/total
	case pipeline.StageJoining:
		return 95
	}
	return 0
}

// CancelJob stops a job. Queued jobs move straight to CANCELLED; running
// jobs have their context cancelled and transition once the pipeline
// unwinds.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel := s.active[jobID]
	s.mu.Unlock()

	switch j.GetStatus() {
	case StatusQueued:
		if cancel != nil {
			cancel()
		}
		if err := j.Cancel(); err != nil {
			return err
		}
		s.logger.Info("job cancelled while queued", "job_id", jobID)
		return s.repo.Save(ctx, j)

	case StatusRunning:
		if cancel == nil {
			// Running in the store but no live worker. Stale state from a
			// previous process; mark it cancelled directly.
			if err := j.Cancel(); err != nil {
				return err
			}
			return s.repo.Save(ctx, j)
		}
		cancel()
		s.logger.Info("job cancellation requested", "job_id", jobID)
		return nil

	default:
		return ErrJobFinished
	}
}

// DeleteJob removes a finished job and its files. Running jobs must be
// cancelled first.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.GetStatus() == StatusRunning {
		return ErrJobRunning
	}

	paths := make([]string, 0, 2)
	if j.InputPath != "" {
		paths = append(paths, j.InputPath)
	}
	if j.OutputPath != "" {
		paths = append(paths, j.OutputPath)
	}
	if len(paths) > 0 {
		_ = s.store.CleanupTemp(ctx, paths)
	}

	if err := s.repo.Delete(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("job deleted", "job_id", jobID)
	return nil
}

// GetJob returns the job with the given ID.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns all jobs, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// JobLog returns the diagnostic log of the job with the given ID.
func (s *Service) JobLog(ctx context.Context, jobID string) ([]string, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return j.LogLines(), nil
}
