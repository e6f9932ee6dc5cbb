// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/autocut/autocut-api/internal/pipeline"
)

// Static errors for configuration validation.
var (
	// ErrMinSilenceInvalid is returned when MIN_SILENCE is not positive.
	ErrMinSilenceInvalid = errors.New("config: MIN_SILENCE must be positive")
	// ErrMarginInvalid is returned when MARGIN is negative.
	ErrMarginInvalid = errors.New("config: MARGIN must not be negative")
	// ErrCrossfadeInvalid is returned when CROSSFADE is negative.
	ErrCrossfadeInvalid = errors.New("config: CROSSFADE must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Toolchain settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/autocut" json:"temp_dir"`

	// Default cut parameters, overridable per job
	ThresholdDB          float64 `env:"THRESHOLD_DB, default=-30" json:"threshold_db"`
	MinSilence           float64 `env:"MIN_SILENCE, default=1.35" json:"min_silence"`
	Margin               float64 `env:"MARGIN, default=0.5" json:"margin"`
	MinClipLen           float64 `env:"MIN_CLIP_LEN, default=0.58" json:"min_clip_len"`
	Crossfade            float64 `env:"CROSSFADE, default=0" json:"crossfade"`
	MaxCrossfadeSegments int     `env:"MAX_CROSSFADE_SEGMENTS, default=120" json:"max_crossfade_segments"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// DefaultSettings returns the pipeline settings built from the configured
// defaults. Requests may override individual fields.
func (c *Config) DefaultSettings() pipeline.Settings {
	return pipeline.Settings{
		ThresholdDB: c.ThresholdDB,
		MinSilence:  c.MinSilence,
		Margin:      c.Margin,
		MinClipLen:  c.MinClipLen,
		Crossfade:   c.Crossfade,
	}
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the cut parameters are usable.
func (c *Config) Validate() error {
	if c.MinSilence <= 0 {
		return ErrMinSilenceInvalid
	}
	if c.Margin < 0 {
		return ErrMarginInvalid
	}
	if c.Crossfade < 0 {
		return ErrCrossfadeInvalid
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, FFmpegPath: %s, TempDir: %s, ThresholdDB: %g, MinSilence: %g, Margin: %g, MinClipLen: %g, Crossfade: %g, MaxCrossfadeSegments: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.FFmpegPath,
		c.TempDir,
		c.ThresholdDB,
		c.MinSilence,
		c.Margin,
		c.MinClipLen,
		c.Crossfade,
		c.MaxCrossfadeSegments,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
