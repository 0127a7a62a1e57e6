package fragment

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
)

// ArchiveExt is the extension fragment archives are given on the local
// filesystem so that their format is recognised by name
const ArchiveExt = ".tar.gz"

// Archiver packs a repodata directory into a fragment archive and back
type Archiver struct{}

// NewArchiver creates a new Archiver
func NewArchiver() *Archiver {
	return &Archiver{}
}

// Create archives root/repodata into archivePath. Entries are stored below
// a top-level repodata/ directory.
func (a *Archiver) Create(ctx context.Context, root, archivePath string) error {
	repodataDir, err := filepath.Abs(RepodataDir(root))
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", root, err)
	}

	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		repodataDir: layout.RepodataDir,
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, file, files); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return file.Sync()
}

// Extract unpacks archivePath into destDir. The archive must contain a
// repodata directory, otherwise models.ErrFragmentCorrupt is returned.
func (a *Archiver) Extract(ctx context.Context, archivePath, destDir string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", models.ErrFragmentCorrupt, archivePath, err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return extractEntry(fsys, path, destDir, d)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrFragmentCorrupt, archivePath, err)
	}

	info, err := os.Stat(RepodataDir(destDir))
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s has no %s directory", models.ErrFragmentCorrupt, archivePath, layout.RepodataDir)
	}
	return nil
}

func extractEntry(fsys fs.FS, path, destDir string, d fs.DirEntry) error {
	if path == "." {
		return nil
	}

	// Archive entries must stay inside destDir
	targetPath := filepath.Join(destDir, filepath.FromSlash(path))
	if !strings.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal entry %s", path)
	}

	if d.IsDir() {
		return os.MkdirAll(targetPath, 0755)
	}
	if !d.Type().IsRegular() {
		return nil
	}

	src, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	dst, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", targetPath, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}
