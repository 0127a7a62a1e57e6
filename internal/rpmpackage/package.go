// Package rpmpackage provides handles on RPM packages that live either on a
// local filesystem or in the object store.
package rpmpackage

import (
	"context"

	"github.com/ralt/rpmsync/internal/identity"
)

// Package is a handle on one package file
type Package interface {
	// Identity returns the package identity, reading the header on first use
	Identity(ctx context.Context) (identity.Identity, error)

	// Key returns the current location of the package
	Key() string

	// Filename returns the last segment of the current location
	Filename() string

	// Move relocates the package. It fails with models.ErrDestinationExists
	// when dest is already occupied.
	Move(ctx context.Context, dest string) error

	// CopyToLocal copies the package bytes to a path on the local filesystem
	CopyToLocal(ctx context.Context, path string) error

	// Close releases temporary resources held by the handle
	Close() error
}
