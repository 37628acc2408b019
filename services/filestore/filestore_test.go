package filestore

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/lms/core"
)

func testStore(t *testing.T, store core.FileStore) {
	ctx := context.Background()

	n, err := store.Save(ctx, "resources/cls1/res1", strings.NewReader("lecture notes"), "text/plain")
	require.NoError(t, err)
	assert.EqualValues(t, len("lecture notes"), n)

	rc, err := store.Open(ctx, "resources/cls1/res1")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "lecture notes", string(body))

	// overwrite
	_, err = store.Save(ctx, "resources/cls1/res1", strings.NewReader("v2"), "text/plain")
	require.NoError(t, err)
	rc, err = store.Open(ctx, "resources/cls1/res1")
	require.NoError(t, err)
	body, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "v2", string(body))

	require.NoError(t, store.Delete(ctx, "resources/cls1/res1"))
	_, err = store.Open(ctx, "resources/cls1/res1")
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(store.Delete(ctx, "resources/cls1/res1")))

	_, err = store.Save(ctx, "../escape", strings.NewReader("x"), "")
	assert.Equal(t, errInvalidKey, err)
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	testStore(t, store)

	_, err = store.Save(context.Background(), "a/b", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "a", "b"))
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	store, err := New(context.Background(), conf)
	require.NoError(t, err)
	assert.IsType(t, &localStore{}, store)

	conf.TestMode = false
	conf.Storage.Backend = "ftp"
	_, err = New(context.Background(), conf)
	assert.Error(t, err)
}
