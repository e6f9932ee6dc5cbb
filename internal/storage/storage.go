// Package storage holds the files the job service works on: uploaded
// source videos waiting to be processed and the cut videos the pipeline
// produces. It defines the Storage port plus a local-disk implementation,
// and an S3-backed one for delivering finished cuts by URL.
package storage

import (
	"context"
	"io"
)

// Storage is the file-handling port of the job service. Uploaded videos and
// pipeline outputs live as temporary files on local disk for the lifetime of
// their job; finished cuts can additionally be published to S3 so clients
// fetch them by URL instead of inline base64.
type Storage interface {
	// SaveTemp writes an uploaded video to a temporary file and returns its
	// path. The name parameter seeds the filename, typically the job ID.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a stored video for reading, for example to embed a
	// finished cut in a job response or stream it to S3. The caller closes
	// the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes a job's files once it is deleted. It keeps going
	// when individual files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 publishes a finished cut under key and returns its public
	// URL. Returns ErrS3NotConfigured when no bucket is configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
