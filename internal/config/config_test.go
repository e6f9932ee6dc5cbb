package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/tmp/autocut", cfg.TempDir)
	assert.InDelta(t, -30.0, cfg.ThresholdDB, 1e-9)
	assert.InDelta(t, 1.35, cfg.MinSilence, 1e-9)
	assert.InDelta(t, 0.5, cfg.Margin, 1e-9)
	assert.InDelta(t, 0.58, cfg.MinClipLen, 1e-9)
	assert.InDelta(t, 0.0, cfg.Crossfade, 1e-9)
	assert.Equal(t, 120, cfg.MaxCrossfadeSegments)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("THRESHOLD_DB", "-40")
	t.Setenv("MIN_SILENCE", "2")
	t.Setenv("MARGIN", "0.25")
	t.Setenv("CROSSFADE", "0.5")
	t.Setenv("MAX_CROSSFADE_SEGMENTS", "60")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.InDelta(t, -40.0, cfg.ThresholdDB, 1e-9)
	assert.InDelta(t, 2.0, cfg.MinSilence, 1e-9)
	assert.InDelta(t, 0.25, cfg.Margin, 1e-9)
	assert.InDelta(t, 0.5, cfg.Crossfade, 1e-9)
	assert.Equal(t, 60, cfg.MaxCrossfadeSegments)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsBadCutParameters(t *testing.T) {
	t.Run("zero MIN_SILENCE", func(t *testing.T) {
		t.Setenv("MIN_SILENCE", "0")
		_, err := Load()
		assert.ErrorIs(t, err, ErrMinSilenceInvalid)
	})

	t.Run("negative MARGIN", func(t *testing.T) {
		t.Setenv("MARGIN", "-0.5")
		_, err := Load()
		assert.ErrorIs(t, err, ErrMarginInvalid)
	})

	t.Run("negative CROSSFADE", func(t *testing.T) {
		t.Setenv("CROSSFADE", "-1")
		_, err := Load()
		assert.ErrorIs(t, err, ErrCrossfadeInvalid)
	})
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_DefaultSettings(t *testing.T) {
	cfg := &Config{
		ThresholdDB: -35,
		MinSilence:  1.5,
		Margin:      0.4,
		MinClipLen:  0.6,
		Crossfade:   0.25,
	}

	set := cfg.DefaultSettings()
	assert.InDelta(t, -35.0, set.ThresholdDB, 1e-9)
	assert.InDelta(t, 1.5, set.MinSilence, 1e-9)
	assert.InDelta(t, 0.4, set.Margin, 1e-9)
	assert.InDelta(t, 0.6, set.MinClipLen, 1e-9)
	assert.InDelta(t, 0.25, set.Crossfade, 1e-9)
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		FFmpegPath:         "ffmpeg",
		TempDir:            "/tmp/test",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "access-key",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "access-key")
	assert.NotContains(t, str, "secret-key")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)

	// Capture output to verify it's JSON
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	// Should have JSON structure
	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
