package filestore

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/classhub/lms/core"
)

var errInvalidKey = errors.New("invalid file key")

// localStore keeps files under a directory of an afero filesystem.
type localStore struct {
	fs afero.Fs
}

var _ core.FileStore = (*localStore)(nil)

// NewLocalStore stores files under dir on the OS filesystem.
func NewLocalStore(dir string) (*localStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrapf(err, "creating file store directory %s", dir)
	}
	return &localStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewMemStore keeps files in memory, for tests.
func NewMemStore() *localStore {
	return &localStore{fs: afero.NewMemMapFs()}
}

// cleanKey rejects keys escaping the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)
	if k == "/" || strings.Contains(key, "..") {
		return "", errInvalidKey
	}
	return k, nil
}

func (s *localStore) Save(_ context.Context, key string, r io.Reader, _ string) (int64, error) {
	k, err := cleanKey(key)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(k), 0750); err != nil {
		return 0, errors.Wrap(err, "creating file directory")
	}

	f, err := s.fs.Create(k)
	if err != nil {
		return 0, errors.Wrap(err, "creating file")
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		_ = s.fs.Remove(k)
		return 0, errors.Wrap(err, "writing file")
	}
	return n, errors.Wrap(f.Close(), "closing file")
}

func (s *localStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(k)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("file " + key)
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(k); err != nil {
		if os.IsNotExist(err) {
			return core.NewNotFoundError("file " + key)
		}
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
