// Package storage is the blob store behind chat file attachments. The chat
// core only ever sees the URL a stored object resolves to.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for attachment blob operations.
type Storage interface {
	// Write stores content from the reader with the given key.
	// size is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read retrieves content for the given key.
	// The caller is responsible for closing the returned ReadCloser.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the content with the given key.
	Delete(ctx context.Context, key string) error

	// Exists checks if content with the given key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns a URL for accessing the content.
	// For local storage this is a server-relative path; for S3 it is a
	// presigned URL valid for the specified duration.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}
