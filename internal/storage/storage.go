package storage

import (
	"context"
	"io"
)

// UploadedObject is one file written by UploadDirectory.
type UploadedObject struct {
	Key  string
	Rel  string
	Size int64
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	KeyPrefix        string
	Filter           func(rel string) bool
	ProgressCallback func(done, total int64)
}

// Service stores profile images and hands out browser-loadable URLs for them.
type Service interface {
	UploadFile(ctx context.Context, key string, body io.Reader, contentType string) error
	UploadDirectory(ctx context.Context, localPath string, opts UploadOptions) ([]UploadedObject, error)
	ObjectURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}
