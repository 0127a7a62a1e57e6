package rpmpackage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/ralt/rpmsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/src-d/go-billy.v4/osfs"
)

// getCounter counts downloads
type getCounter struct {
	*storage.Memory
	gets int
}

func (c *getCounter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	c.gets++
	return c.Memory.Get(ctx, key)
}

func bytesReader(s string) io.Reader {
	return strings.NewReader(s)
}

var first = testutil.Spec{Name: "first", Version: "1.0", Release: "1.cm2", Arch: "x86_64"}

func TestRemoteIdentityDownloadsOnce(t *testing.T) {
	ctx := context.Background()
	store := &getCounter{Memory: storage.NewMemory()}
	testutil.Upload(t, store, "upload/first.rpm", first)

	pkg := NewRemote(store, "upload/first.rpm", testutil.Reader{}, t.TempDir())
	defer pkg.Close()

	for i := 0; i < 3; i++ {
		id, err := pkg.Identity(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", id.Name)
		assert.Equal(t, "1.0", id.Version)
		assert.Equal(t, "cm2", id.Dist)
	}

	local, err := pkg.Materialize(ctx)
	require.NoError(t, err)
	again, err := pkg.Materialize(ctx)
	require.NoError(t, err)
	assert.Same(t, local, again)
	assert.Equal(t, 1, store.gets)
}

func TestRemoteCloseRemovesDownload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	testutil.Upload(t, store, "upload/first.rpm", first)

	pkg := NewRemote(store, "upload/first.rpm", testutil.Reader{}, t.TempDir())
	local, err := pkg.Materialize(ctx)
	require.NoError(t, err)
	_, err = os.Stat(local.Path)
	require.NoError(t, err)

	require.NoError(t, pkg.Close())
	_, err = os.Stat(local.Path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, pkg.Close())
}

func TestRemoteMove(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	testutil.Upload(t, store, "upload/first.rpm", first)

	pkg := NewRemote(store, "upload/first.rpm", testutil.Reader{}, t.TempDir())
	defer pkg.Close()
	require.NoError(t, pkg.Move(ctx, "cm/2/first-1.0-1.cm2.x86_64.rpm"))

	assert.Equal(t, "cm/2/first-1.0-1.cm2.x86_64.rpm", pkg.Key())
	assert.Equal(t, "first-1.0-1.cm2.x86_64.rpm", pkg.Filename())
	assert.Equal(t, []string{"cm/2/first-1.0-1.cm2.x86_64.rpm"}, store.Keys())
}

func TestRemoteMoveRefusesOccupiedDestination(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	testutil.Upload(t, store, "upload/first.rpm", first)
	testutil.Upload(t, store, "cm/2/first-1.0-1.cm2.x86_64.rpm", testutil.Spec{Name: "existing", Version: "9"})

	pkg := NewRemote(store, "upload/first.rpm", testutil.Reader{}, t.TempDir())
	defer pkg.Close()
	err := pkg.Move(ctx, "cm/2/first-1.0-1.cm2.x86_64.rpm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDestinationExists))

	// Neither object was touched.
	assert.Equal(t, "upload/first.rpm", pkg.Key())
	assert.Equal(t, []string{"cm/2/first-1.0-1.cm2.x86_64.rpm", "upload/first.rpm"}, store.Keys())
	existing := NewRemote(store, "cm/2/first-1.0-1.cm2.x86_64.rpm", testutil.Reader{}, t.TempDir())
	defer existing.Close()
	id, err := existing.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "existing", id.Name)
}

// racedStore answers Exists from before another run took the destination
type racedStore struct {
	*storage.Memory
}

func (racedStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func TestRemoteMoveLosesRace(t *testing.T) {
	ctx := context.Background()
	store := racedStore{Memory: storage.NewMemory()}
	testutil.Upload(t, store, "upload/first.rpm", first)
	testutil.Upload(t, store, "cm/2/first-1.0-1.cm2.x86_64.rpm", testutil.Spec{Name: "existing", Version: "9"})

	pkg := NewRemote(store, "upload/first.rpm", testutil.Reader{}, t.TempDir())
	defer pkg.Close()
	err := pkg.Move(ctx, "cm/2/first-1.0-1.cm2.x86_64.rpm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDestinationExists))

	assert.Equal(t, "upload/first.rpm", pkg.Key())
	assert.Equal(t, []string{"cm/2/first-1.0-1.cm2.x86_64.rpm", "upload/first.rpm"}, store.Keys())
}

func TestRemoteMalformed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Put(ctx, "upload/bad.rpm", bytesReader("garbage"), false))

	pkg := NewRemote(store, "upload/bad.rpm", testutil.Reader{}, t.TempDir())
	defer pkg.Close()
	_, err := pkg.Identity(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedPackage))

	var repoErr *models.RepoError
	require.True(t, errors.As(err, &repoErr))
	assert.Equal(t, models.ErrPackageParse, repoErr.Type)
}

func TestRemoteCopyToLocal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	testutil.Upload(t, store, "cm/2/first.rpm", first)

	pkg := NewRemote(store, "cm/2/first.rpm", testutil.Reader{}, t.TempDir())
	defer pkg.Close()

	dst := filepath.Join(t.TempDir(), "nested", "first.rpm")
	require.NoError(t, pkg.CopyToLocal(ctx, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, testutil.RPM(first), data)
}

func TestLocalPackage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs := osfs.New(root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "upload"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "upload", "first.rpm"), testutil.RPM(first), 0644))

	var pkg Package = NewLocal(fs, "upload/first.rpm", testutil.Reader{})
	id, err := pkg.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Identity(), id)

	require.NoError(t, pkg.Move(ctx, "cm/2/first-1.0-1.cm2.x86_64.rpm"))
	assert.Equal(t, "cm/2/first-1.0-1.cm2.x86_64.rpm", pkg.Key())
	_, err = os.Stat(filepath.Join(root, "cm", "2", "first-1.0-1.cm2.x86_64.rpm"))
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "copy.rpm")
	require.NoError(t, pkg.CopyToLocal(ctx, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, testutil.RPM(first), data)
}

func TestLocalMoveCollision(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs := osfs.New(root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "upload"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cm", "2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "upload", "first.rpm"), testutil.RPM(first), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cm", "2", "taken.rpm"), []byte("x"), 0644))

	pkg := NewLocal(fs, "upload/first.rpm", testutil.Reader{})
	err := pkg.Move(ctx, "cm/2/taken.rpm")
	assert.True(t, errors.Is(err, models.ErrDestinationExists))
	assert.Equal(t, "upload/first.rpm", pkg.Key())
}

func TestIdentityFromReader(t *testing.T) {
	var _ identity.Reader = testutil.Reader{}
	var _ Package = (*Remote)(nil)
	var _ Package = (*Local)(nil)
}
