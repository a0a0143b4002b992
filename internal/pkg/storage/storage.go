package storage

import (
	"context"
	"io"
)

// Storage is the backend for dispute evidence files
type Storage interface {
	// Put stores a file under key
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get opens a stored file. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a file. Returns nil if the file does not exist.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a file is present
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the public URL for a stored file
	GetURL(key string) string
}

// FileInfo describes a stored file
type FileInfo struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// Config selects and configures a storage backend
type Config struct {
	Provider string // s3 or local

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	LocalBasePath string
	LocalBaseURL  string
}

// New creates the storage backend named by cfg.Provider
func New(cfg Config) (Storage, error) {
	if cfg.Provider == "s3" {
		return NewS3Storage(cfg)
	}
	return NewLocalStorage(cfg.LocalBasePath, cfg.LocalBaseURL)
}
