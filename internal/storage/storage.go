package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage reads back objects from an S3-compatible bucket after a
// browser-style upload. Access is anonymous: only objects the upload's ACL
// made public can be seen, which is exactly what a public URL promises.

// ErrNotFound is returned when the object does not exist or is not public.
var ErrNotFound = errors.New("object not found")

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a read-only view of one bucket.
type Storage interface {
	// Stat returns an object's info without its content.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}
