// Package storage defines the object store the repository lives in, along
// with a directory-backed implementation, an in-memory implementation and a
// retrying decorator.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrExists is returned when a write would replace an existing object
	ErrExists = errors.New("object already exists")
)

// Object describes a stored object
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is a flat namespace of named blobs carrying key-value tags.
// Keys use forward slashes and never start with one.
type Store interface {
	// List returns every object whose key starts with prefix, sorted by key
	List(ctx context.Context, prefix string) ([]Object, error)

	// Stat returns the object description, or ErrNotFound
	Stat(ctx context.Context, key string) (Object, error)

	// Exists reports whether key exists
	Exists(ctx context.Context, key string) (bool, error)

	// Get opens the object for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes the object. Without overwrite, an existing object makes
	// Put fail with ErrExists. Writing replaces the object's tags.
	Put(ctx context.Context, key string, r io.Reader, overwrite bool) error

	// Delete removes the object, or returns ErrNotFound
	Delete(ctx context.Context, key string) error

	// Copy duplicates src to dst including its tags, failing with ErrExists
	// when dst is already present
	Copy(ctx context.Context, src, dst string) error

	// GetTags returns the object's tags
	GetTags(ctx context.Context, key string) (map[string]string, error)

	// SetTags replaces the object's tags
	SetTags(ctx context.Context, key string, tags map[string]string) error
}

// Timestamp is the string form of a last-modified time stored in tags and
// compared as an opaque value
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsTransient reports whether err may succeed on retry
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrExists),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func copyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
