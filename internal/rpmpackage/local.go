package rpmpackage

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/utils"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-billy.v4"
)

// Local is a package on a billy filesystem
type Local struct {
	fs     billy.Filesystem
	name   string
	reader identity.Reader

	id *identity.Identity
}

// NewLocal creates a handle on the package at name inside fs
func NewLocal(fs billy.Filesystem, name string, reader identity.Reader) *Local {
	return &Local{fs: fs, name: name, reader: reader}
}

// Identity implements Package
func (p *Local) Identity(ctx context.Context) (identity.Identity, error) {
	if p.id != nil {
		return *p.id, nil
	}

	f, err := p.fs.Open(p.name)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to open %s: %w", p.name, err)
	}
	defer f.Close()

	id, err := p.reader.Read(f)
	if err != nil {
		return identity.Identity{}, models.NewError(models.ErrPackageParse, p.name, err)
	}
	p.id = &id
	return id, nil
}

// Key implements Package
func (p *Local) Key() string {
	return p.name
}

// Filename implements Package
func (p *Local) Filename() string {
	return path.Base(p.name)
}

// Move renames the package after creating the parent directories of dest
func (p *Local) Move(ctx context.Context, dest string) error {
	if _, err := p.fs.Stat(dest); err == nil {
		return fmt.Errorf("%s: %w", dest, models.ErrDestinationExists)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := p.fs.MkdirAll(path.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path.Dir(dest), err)
	}
	if err := p.fs.Rename(p.name, dest); err != nil {
		return fmt.Errorf("failed to move %s: %w", p.name, err)
	}

	logrus.Debugf("Package moved from %s to %s", p.name, dest)
	p.name = dest
	return nil
}

// CopyToLocal implements Package
func (p *Local) CopyToLocal(ctx context.Context, dst string) error {
	src, err := p.fs.Open(p.name)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := utils.WriteReader(dst, src); err != nil {
		return models.NewError(models.ErrFileOp, p.name, err)
	}
	logrus.Debugf("Package copied to %s", dst)
	return nil
}

// Close implements Package
func (p *Local) Close() error {
	return nil
}

func (p *Local) String() string {
	if p.id != nil {
		return fmt.Sprintf("Local(%s; %s)", p.name, p.id)
	}
	return fmt.Sprintf("Local(%s)", p.name)
}
