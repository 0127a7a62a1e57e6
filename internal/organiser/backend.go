package organiser

import (
	"context"
	"path"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/rpmpackage"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-billy.v4"
)

// Backend lists uploaded packages and relocates them
type Backend interface {
	// ListUploads returns a handle on every package under dir
	ListUploads(ctx context.Context, dir string) ([]rpmpackage.Package, error)

	// Relocate moves pkg to dest
	Relocate(ctx context.Context, pkg rpmpackage.Package, dest string) error

	// StrictCollisions reports whether an occupied destination aborts the run
	StrictCollisions() bool
}

// StoreBackend organises packages inside the object store. Moves are a copy
// followed by a delete and may race with another run, so an occupied
// destination only skips the package.
type StoreBackend struct {
	store   storage.Store
	reader  identity.Reader
	tempDir string
}

// NewStoreBackend creates a backend over store. Packages are downloaded to
// tempDir to read their identity.
func NewStoreBackend(store storage.Store, reader identity.Reader, tempDir string) *StoreBackend {
	return &StoreBackend{store: store, reader: reader, tempDir: tempDir}
}

// ListUploads implements Backend
func (b *StoreBackend) ListUploads(ctx context.Context, dir string) ([]rpmpackage.Package, error) {
	objects, err := b.store.List(ctx, layout.DirPrefix(dir))
	if err != nil {
		return nil, err
	}

	var packages []rpmpackage.Package
	for _, obj := range objects {
		if !layout.IsPackageKey(obj.Key) {
			logrus.Infof("Skipping non-RPM upload %s", obj.Key)
			continue
		}
		packages = append(packages, rpmpackage.NewRemote(b.store, obj.Key, b.reader, b.tempDir))
	}
	return packages, nil
}

// Relocate implements Backend
func (b *StoreBackend) Relocate(ctx context.Context, pkg rpmpackage.Package, dest string) error {
	return pkg.Move(ctx, dest)
}

// StrictCollisions implements Backend
func (b *StoreBackend) StrictCollisions() bool {
	return false
}

// LocalBackend organises packages on a filesystem. Renames are not expected
// to race, so an occupied destination is an error.
type LocalBackend struct {
	fs     billy.Filesystem
	reader identity.Reader
}

// NewLocalBackend creates a backend over fs
func NewLocalBackend(fs billy.Filesystem, reader identity.Reader) *LocalBackend {
	return &LocalBackend{fs: fs, reader: reader}
}

// ListUploads implements Backend. Only files directly inside dir are listed.
func (b *LocalBackend) ListUploads(ctx context.Context, dir string) ([]rpmpackage.Package, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := b.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var packages []rpmpackage.Package
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := path.Join(dir, entry.Name())
		if !layout.IsPackageKey(name) {
			logrus.Infof("Skipping non-RPM upload %s", name)
			continue
		}
		packages = append(packages, rpmpackage.NewLocal(b.fs, name, b.reader))
	}
	return packages, nil
}

// Relocate implements Backend
func (b *LocalBackend) Relocate(ctx context.Context, pkg rpmpackage.Package, dest string) error {
	return pkg.Move(ctx, dest)
}

// StrictCollisions implements Backend
func (b *LocalBackend) StrictCollisions() bool {
	return true
}
