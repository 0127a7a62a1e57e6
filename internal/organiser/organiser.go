// Package organiser moves uploaded packages to their canonical location.
// An organiser pairs a layout.PathPolicy, which decides where a package
// belongs, with a Backend, which knows how to list and move packages.
package organiser

import (
	"context"
	"errors"

	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/rpmpackage"
	"github.com/sirupsen/logrus"
)

// Organiser relocates uploads according to a path policy
type Organiser struct {
	policy    layout.PathPolicy
	backend   Backend
	uploadDir string
}

// Outcome summarises an Organise call
type Outcome struct {
	// Moved holds the new location of every relocated package
	Moved []string

	// Skipped holds the upload location of every package left in place
	Skipped []string
}

// New creates an organiser for the packages uploaded to uploadDir
func New(policy layout.PathPolicy, backend Backend, uploadDir string) *Organiser {
	return &Organiser{policy: policy, backend: backend, uploadDir: uploadDir}
}

// ListUploads returns the packages waiting in the upload directory
func (o *Organiser) ListUploads(ctx context.Context) ([]rpmpackage.Package, error) {
	packages, err := o.backend.ListUploads(ctx, o.uploadDir)
	if err != nil {
		return nil, models.NewError(models.ErrStorage, o.uploadDir, err)
	}
	return packages, nil
}

// Organise moves every uploaded package to the location its identity maps
// to. Unreadable packages stay where they are. An occupied destination is
// skipped, unless the backend treats collisions as fatal.
func (o *Organiser) Organise(ctx context.Context) (*Outcome, error) {
	packages, err := o.ListUploads(ctx)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Found %d uploaded packages in %q", len(packages), o.uploadDir)

	outcome := &Outcome{}
	for _, pkg := range packages {
		moved, err := o.organiseOne(ctx, pkg)
		pkg.Close()
		if err != nil {
			return outcome, err
		}
		if moved {
			outcome.Moved = append(outcome.Moved, pkg.Key())
		} else {
			outcome.Skipped = append(outcome.Skipped, pkg.Key())
		}
	}
	return outcome, nil
}

func (o *Organiser) organiseOne(ctx context.Context, pkg rpmpackage.Package) (bool, error) {
	id, err := pkg.Identity(ctx)
	if errors.Is(err, models.ErrMalformedPackage) {
		logrus.Warnf("Skipping unreadable package %s: %v", pkg.Key(), err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	dest := o.policy.Path(id)
	if dest == pkg.Key() {
		return false, nil
	}

	err = o.backend.Relocate(ctx, pkg, dest)
	if errors.Is(err, models.ErrDestinationExists) && !o.backend.StrictCollisions() {
		logrus.Warnf("Skipping %s: %v", pkg.Key(), err)
		return false, nil
	}
	if err != nil {
		return false, models.NewError(models.ErrRelocate, pkg.Key(), err)
	}
	return true, nil
}
