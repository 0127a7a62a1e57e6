package rpmpackage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/ralt/rpmsync/internal/utils"
	"github.com/sirupsen/logrus"
)

// LocalCopy is a downloaded copy of a remote package. It is shared by every
// caller of Remote.Materialize and must not be modified.
type LocalCopy struct {
	Path string
}

// Remote is a package stored in the object store. Its bytes are downloaded
// at most once per handle, on first use.
type Remote struct {
	store   storage.Store
	key     string
	reader  identity.Reader
	tempDir string

	local *LocalCopy
	id    *identity.Identity
}

// NewRemote creates a handle on the package stored at key. Downloads are
// placed in tempDir, or the OS temporary directory when empty.
func NewRemote(store storage.Store, key string, reader identity.Reader, tempDir string) *Remote {
	return &Remote{store: store, key: key, reader: reader, tempDir: tempDir}
}

// Materialize downloads the package to a temporary file unless that
// already happened, and returns the local copy
func (p *Remote) Materialize(ctx context.Context) (*LocalCopy, error) {
	if p.local != nil {
		return p.local, nil
	}

	rc, err := p.store.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", p.key, err)
	}
	defer rc.Close()

	f, err := os.CreateTemp(p.tempDir, "rpmsync-*.rpm")
	if err != nil {
		return nil, models.NewError(models.ErrFileOp, p.key, err)
	}
	tempName := f.Name()

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tempName)
		return nil, fmt.Errorf("failed to download %s: %w", p.key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempName)
		return nil, models.NewError(models.ErrFileOp, p.key, err)
	}

	p.local = &LocalCopy{Path: tempName}
	logrus.Debugf("Package downloaded to %s", tempName)
	return p.local, nil
}

// Identity implements Package
func (p *Remote) Identity(ctx context.Context) (identity.Identity, error) {
	if p.id != nil {
		return *p.id, nil
	}

	local, err := p.Materialize(ctx)
	if err != nil {
		return identity.Identity{}, err
	}

	f, err := os.Open(local.Path)
	if err != nil {
		return identity.Identity{}, models.NewError(models.ErrFileOp, p.key, err)
	}
	defer f.Close()

	id, err := p.reader.Read(f)
	if err != nil {
		return identity.Identity{}, models.NewError(models.ErrPackageParse, p.key, err)
	}
	p.id = &id
	return id, nil
}

// Key implements Package
func (p *Remote) Key() string {
	return p.key
}

// Filename implements Package
func (p *Remote) Filename() string {
	return path.Base(p.key)
}

// Move copies the package to dest and deletes the original. It refuses to
// replace an existing object so that a duplicate trigger cannot clobber an
// already classified package.
func (p *Remote) Move(ctx context.Context, dest string) error {
	exists, err := p.store.Exists(ctx, dest)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s already exists: %w", dest, models.ErrDestinationExists)
	}

	// Another run may take dest between the check and the copy
	if err := p.store.Copy(ctx, p.key, dest); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return fmt.Errorf("%s already exists: %w", dest, models.ErrDestinationExists)
		}
		return fmt.Errorf("failed to copy %s to %s: %w", p.key, dest, err)
	}
	if err := p.store.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", p.key, err)
	}

	logrus.Infof("Package moved from %s to %s", p.key, dest)
	p.key = dest
	return nil
}

// CopyToLocal implements Package
func (p *Remote) CopyToLocal(ctx context.Context, dst string) error {
	local, err := p.Materialize(ctx)
	if err != nil {
		return err
	}

	if err := utils.CopyFile(local.Path, dst); err != nil {
		return models.NewError(models.ErrFileOp, p.key, err)
	}
	logrus.Debugf("Package copied to %s", dst)
	return nil
}

// Close removes the downloaded copy, if any
func (p *Remote) Close() error {
	if p.local == nil {
		return nil
	}
	err := os.Remove(p.local.Path)
	p.local = nil
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *Remote) String() string {
	return fmt.Sprintf("Remote(%s)", p.key)
}
