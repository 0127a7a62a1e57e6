package fragment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archives"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := writeRepo(t, first)
	require.NoError(t, newTestNative().Generate(ctx, root))

	archivePath := filepath.Join(t.TempDir(), "fragment"+ArchiveExt)
	a := NewArchiver()
	require.NoError(t, a.Create(ctx, root, archivePath))

	dest := t.TempDir()
	require.NoError(t, a.Extract(ctx, archivePath, dest))

	// Only the repodata directory is archived
	_, err := os.Stat(filepath.Join(dest, first.Filename()))
	assert.True(t, os.IsNotExist(err))

	pkgs, err := readPrimary(dest)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "first", pkgs[0].Name)
}

func TestExtractGarbage(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "fragment"+ArchiveExt)
	require.NoError(t, os.WriteFile(archivePath, []byte("definitely not an archive"), 0644))

	err := NewArchiver().Extract(context.Background(), archivePath, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFragmentCorrupt))
}

func TestExtractWithoutRepodata(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("hello"), 0644))

	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{src: "other"})
	require.NoError(t, err)

	archivePath := filepath.Join(t.TempDir(), "fragment"+ArchiveExt)
	out, err := os.Create(archivePath)
	require.NoError(t, err)
	format := archives.CompressedArchive{Compression: archives.Gz{}, Archival: archives.Tar{}}
	require.NoError(t, format.Archive(ctx, out, files))
	require.NoError(t, out.Close())

	err = NewArchiver().Extract(ctx, archivePath, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFragmentCorrupt))
}
