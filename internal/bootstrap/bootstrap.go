// Package bootstrap provides dependency initialization for the AutoCut API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/autocut/autocut-api/internal/config"
	"github.com/autocut/autocut-api/internal/job"
	"github.com/autocut/autocut-api/internal/media"
	"github.com/autocut/autocut-api/internal/pipeline"
	"github.com/autocut/autocut-api/internal/runner"
	"github.com/autocut/autocut-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	JobService *job.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize the ffmpeg toolchain
	run := runner.New()
	tools := media.NewFFmpeg(cfg.FFmpegPath, run)

	// Initialize the cut pipeline
	pipe := pipeline.New(tools, cfg.TempDir,
		pipeline.WithMaxCrossfadeSegments(cfg.MaxCrossfadeSegments),
		pipeline.WithLogger(logger),
	)

	// Initialize job repository and service
	repo := job.NewMemoryRepository()
	svc := job.NewService(repo, pipe, store, logger)

	return &Dependencies{
		JobService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
