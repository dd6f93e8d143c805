package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittoxfer/pkg/store"
	storetesting "github.com/marmos91/dittoxfer/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "files")})
	require.NoError(t, err)
	return s
}

// TestFSStore runs the complete FileStore test suite against FSStore.
func TestFSStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func() store.FileStore {
			return newTestStore(t)
		},
	}

	suite.Run(t)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNew_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	s, err := New(context.Background(), Config{Path: root})
	require.NoError(t, err)

	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFSStore_ListSkipsNonFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "visible.txt", []byte("v")))
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".hidden"), []byte("h"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), store.TempPrefix+"123"), []byte("t"), 0644))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"visible.txt"}, names)
}

func TestFSStore_DirectoryIsNotAFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "subdir"), 0755))

	_, err := s.Read(ctx, "subdir")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "subdir"), store.ErrNotFound)
}

func TestFSStore_TraversalStaysInRoot(t *testing.T) {
	base := t.TempDir()
	secret := filepath.Join(base, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0644))

	s, err := New(context.Background(), Config{Path: filepath.Join(base, "files")})
	require.NoError(t, err)

	_, err = s.Read(context.Background(), "../secret.txt")
	assert.ErrorIs(t, err, store.ErrInvalidName)
	assert.ErrorIs(t, s.Delete(context.Background(), "../secret.txt"), store.ErrInvalidName)

	_, err = os.Stat(secret)
	assert.NoError(t, err, "file outside the root must be untouched")
}

func TestFSStore_WriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write(context.Background(), "a.txt", []byte("data")))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFSStore_CleanupTemp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "keep.txt", []byte("k")))
	for _, name := range []string{store.TempPrefix + "1", store.TempPrefix + "2"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Root(), name), []byte("partial"), 0600))
	}

	removed, err := s.CleanupTemp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFSStore_SharedRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "shared")
	a, err := New(context.Background(), Config{Path: root})
	require.NoError(t, err)
	b, err := New(context.Background(), Config{Path: root})
	require.NoError(t, err)

	require.NoError(t, a.Write(context.Background(), "x.txt", []byte("from a")))

	data, err := b.Read(context.Background(), "x.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("from a"), data)
}
