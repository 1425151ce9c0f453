package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotConfigured is returned when no bucket has been configured.
var ErrNotConfigured = errors.New("storage service not configured")

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// PutOptions describes a single object upload.
type PutOptions struct {
	Bucket      string
	Key         string
	ContentType string
	Metadata    map[string]string
}

// Service archives editor submissions in remote object storage.
type Service interface {
	PutObject(ctx context.Context, body io.Reader, opts PutOptions) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
