package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ralt/rpmsync/internal/fragment"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/rpmpackage"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/sirupsen/logrus"
)

// CheckMetadata reports whether the fragment of the package at pkgKey must
// be regenerated. A fragment is fresh when it exists and its timestamp tag
// equals the current timestamp of the package.
func (r *Repository) CheckMetadata(ctx context.Context, pkgKey string) (bool, error) {
	fragmentKey := layout.FragmentKey(pkgKey)

	exists, err := r.store.Exists(ctx, fragmentKey)
	if err != nil {
		return false, models.NewError(models.ErrStorage, fragmentKey, err)
	}
	if !exists {
		logrus.Infof("Metadata for %s does not exist", pkgKey)
		return true, nil
	}

	tags, err := r.store.GetTags(ctx, fragmentKey)
	if err != nil {
		return false, models.NewError(models.ErrStorage, fragmentKey, err)
	}
	tagged, ok := tags[TagLastModified]
	if !ok {
		logrus.Infof("Metadata for %s has no %s tag", pkgKey, TagLastModified)
		return true, nil
	}

	obj, err := r.store.Stat(ctx, pkgKey)
	if err != nil {
		return false, models.NewError(models.ErrStorage, pkgKey, err)
	}
	if current := storage.Timestamp(obj.LastModified); tagged != current {
		logrus.Infof("Metadata for %s is out of date (%s != %s)", pkgKey, tagged, current)
		return true, nil
	}

	logrus.Debugf("Metadata for %s is up to date", pkgKey)
	return false, nil
}

// CreateMetadata builds the fragment of pkg in a temporary working root and
// uploads it. The fragment is tagged with the package timestamp read after
// generation, so a package replaced meanwhile is found stale next time.
func (r *Repository) CreateMetadata(ctx context.Context, pkg rpmpackage.Package) error {
	work, err := os.MkdirTemp(r.workDir, "rpmsync-fragment-")
	if err != nil {
		return models.NewError(models.ErrFileOp, pkg.Key(), err)
	}
	defer os.RemoveAll(work)

	root := filepath.Join(work, "repo")
	if err := pkg.CopyToLocal(ctx, filepath.Join(root, pkg.Filename())); err != nil {
		return err
	}

	if err := r.tool.Generate(ctx, root); err != nil {
		return models.NewError(models.ErrMetadataGen, pkg.Key(), err)
	}
	if info, err := os.Stat(fragment.RepodataDir(root)); err != nil || !info.IsDir() {
		return models.NewError(models.ErrMetadataGen, pkg.Key(),
			fmt.Errorf("%w: no %s directory produced", models.ErrFragmentGeneration, layout.RepodataDir))
	}

	archivePath := filepath.Join(work, "fragment"+fragment.ArchiveExt)
	if err := r.archiver.Create(ctx, root, archivePath); err != nil {
		return models.NewError(models.ErrMetadataGen, pkg.Key(), err)
	}

	fragmentKey := layout.FragmentKey(pkg.Key())
	if err := r.upload(ctx, archivePath, fragmentKey); err != nil {
		return err
	}

	obj, err := r.store.Stat(ctx, pkg.Key())
	if err != nil {
		return models.NewError(models.ErrStorage, pkg.Key(), err)
	}
	tags := map[string]string{TagLastModified: storage.Timestamp(obj.LastModified)}
	if err := r.store.SetTags(ctx, fragmentKey, tags); err != nil {
		return models.NewError(models.ErrStorage, fragmentKey, err)
	}

	logrus.Infof("Metadata created for %s", pkg.Key())
	return nil
}

// upload writes the local file at src to key, replacing any existing object
func (r *Repository) upload(ctx context.Context, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return models.NewError(models.ErrFileOp, src, err)
	}
	defer f.Close()

	if err := r.store.Put(ctx, key, f, true); err != nil {
		return models.NewError(models.ErrStorage, key, err)
	}
	return nil
}

// download writes the object at key to the local file dst
func (r *Repository) download(ctx context.Context, key, dst string) error {
	rc, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.NewError(models.ErrMerge, key, fmt.Errorf("%w: %v", models.ErrFragmentCorrupt, err))
		}
		return models.NewError(models.ErrStorage, key, err)
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return models.NewError(models.ErrFileOp, dst, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(rc); err != nil {
		return models.NewError(models.ErrStorage, key, err)
	}
	return nil
}
