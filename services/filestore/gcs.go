package filestore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
)

// gcsStore keeps files as objects of a Google Cloud Storage bucket.
type gcsStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

var _ core.FileStore = (*gcsStore)(nil)

// NewGCSStore uses the application default credentials.
func NewGCSStore(ctx context.Context, bucket string) (*gcsStore, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS storage client")
	}
	return &gcsStore{client: client, bucket: client.Bucket(bucket)}, nil
}

func (s *gcsStore) Save(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	w.CacheControl = "private, max-age=0"

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, errors.Wrapf(err, "copying file to gs object %s", key)
	}
	if err := w.Close(); err != nil {
		return 0, errors.Wrapf(err, "closing gs writer for %s", key)
	}
	return n, nil
}

func (s *gcsStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Cause(err) == storage.ErrObjectNotExist {
			return nil, core.NewNotFoundError("file " + key)
		}
		return nil, errors.Wrapf(err, "reading gs object %s", key)
	}
	return r, nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Cause(err) == storage.ErrObjectNotExist {
			return core.NewNotFoundError("file " + key)
		}
		return errors.Wrapf(err, "deleting gs object %s", key)
	}
	return nil
}

func (s *gcsStore) Close() error {
	return s.client.Close()
}
