package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "state", "snapshot.json"))
	require.NoError(t, err)

	ctx := context.Background()

	_, err = fs.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, fs.Save(ctx, []byte(`{"v":1}`)))
	blob, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), blob)

	// Overwrite replaces the whole snapshot.
	require.NoError(t, fs.Save(ctx, []byte(`{"v":2}`)))
	blob, err = fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), blob)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)
	require.NoError(t, fs.Save(context.Background(), []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.json", entries[0].Name())
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, ms.Save(ctx, []byte("a")))

	boom := errors.New("disk full")
	ms.FailNextSave(boom)
	assert.ErrorIs(t, ms.Save(ctx, []byte("b")), boom)

	// Previous snapshot survives a failed save.
	blob, err := ms.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), blob)

	require.NoError(t, ms.Save(ctx, []byte("c")))
	assert.Equal(t, 2, ms.Saves())
}
