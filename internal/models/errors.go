package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrPackageParse ErrorType = iota
	ErrMetadataGen
	ErrMerge
	ErrRelocate
	ErrStorage
	ErrFileOp
	ErrInvalidConfig
)

// Sentinel errors, matched with errors.Is
var (
	// ErrMalformedPackage is returned when a package header cannot be parsed
	ErrMalformedPackage = errors.New("malformed package")

	// ErrDestinationExists is returned when a relocation target is occupied
	ErrDestinationExists = errors.New("destination already exists")

	// ErrFragmentGeneration is returned when the fragment generator fails
	ErrFragmentGeneration = errors.New("failed to generate metadata")

	// ErrFragmentCorrupt is returned when a fragment archive lacks its repodata
	ErrFragmentCorrupt = errors.New("failed to extract metadata")

	// ErrMergeFailed is returned when the merge tool fails or produces nothing
	ErrMergeFailed = errors.New("failed to merge metadata")
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrPackageParse:
		return "PackageParse"
	case ErrMetadataGen:
		return "MetadataGen"
	case ErrMerge:
		return "Merge"
	case ErrRelocate:
		return "Relocate"
	case ErrStorage:
		return "Storage"
	case ErrFileOp:
		return "FileOp"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// RepoError represents an error during repository synchronization
type RepoError struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *RepoError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *RepoError) Unwrap() error {
	return e.Err
}

// NewError wraps err into a RepoError of the given type
func NewError(t ErrorType, pkg string, err error) *RepoError {
	return &RepoError{Type: t, Package: pkg, Err: err}
}
