// Package filestore holds the core.FileStore backends for resource files.
package filestore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
)

// New returns the store selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	if conf.TestMode {
		return NewMemStore(), nil
	}
	switch conf.Storage.Backend {
	case core.StorageLocal, "":
		return NewLocalStore(conf.Storage.Dir)
	case core.StorageGCS:
		return NewGCSStore(ctx, conf.Storage.Bucket)
	}
	return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
}
