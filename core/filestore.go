package core

import (
	"context"
	"io"
)

// FileStore stores resource attachments under opaque keys.
// Open and Delete return a *NotFoundError when the key does not exist.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
