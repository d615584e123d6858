package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"truthlink/config"
)

// ErrNotFound means no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// BlobStore holds uploaded evidence. The rest of the system only ever
// handles opaque keys; nothing above this package knows where the bytes
// live.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// NewFromConfig builds the configured provider.
func NewFromConfig(cfg config.EvidenceConfig) (BlobStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported evidence provider %q", cfg.Provider)
	}
}

// ValidKey rejects anything that could escape the store namespace.
func ValidKey(key string) bool {
	if key == "" || len(key) > 256 {
		return false
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return false
	}
	return true
}
