// Package server provides the HTTP server for the AutoCut API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SettingsPayload carries optional per-job overrides of the configured cut
// parameters. Nil fields fall back to the server defaults.
type SettingsPayload struct {
	// ThresholdDB is the silence threshold in dBFS.
	ThresholdDB *float64 `json:"threshold_db,omitempty" validate:"omitempty,lt=0"`
	// MinSilence is the minimum silence duration in seconds.
	MinSilence *float64 `json:"min_silence,omitempty" validate:"omitempty,gt=0"`
	// Margin is the padding kept around speech in seconds.
	Margin *float64 `json:"margin,omitempty" validate:"omitempty,gte=0"`
	// MinClipLen is the minimum kept clip length in seconds.
	MinClipLen *float64 `json:"min_clip_len,omitempty" validate:"omitempty,gte=0"`
	// Crossfade is the crossfade duration in seconds; 0 means hard cuts.
	Crossfade *float64 `json:"crossfade,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// Settings holds optional per-job cut parameter overrides.
	Settings *SettingsPayload `json:"settings,omitempty"`
	// PushToS3 indicates whether to upload the final video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Stage is the pipeline stage currently executing, if running.
	Stage string `json:"stage,omitempty"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// VideoBase64 is the base64-encoded video content (if push_to_s3=false and completed).
	VideoBase64 string `json:"video_base64,omitempty"`
	// VideoURL is the S3 URL of the output video (if push_to_s3=true and completed).
	VideoURL string `json:"video_url,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	// Jobs holds one entry per job, newest first, without video payloads.
	Jobs []JobResponse `json:"jobs"`
}

// JobLogResponse is the HTTP response for a job's diagnostic log.
type JobLogResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Lines holds the log lines in emission order.
	Lines []string `json:"lines"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
