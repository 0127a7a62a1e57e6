package layout

import (
	"path"
	"strings"
)

const (
	// PackageExt is the extension of package objects
	PackageExt = ".rpm"

	// FragmentExt is the extension of per-package index fragments
	FragmentExt = ".package"

	// RepodataDir holds the merged index of a directory
	RepodataDir = "repodata"

	// RejectedDir holds packages that cannot be classified
	RejectedDir = "rejected"

	// DefaultUploadDir is where new packages are uploaded
	DefaultUploadDir = "upload"
)

// IsPackageKey reports whether key names a package object
func IsPackageKey(key string) bool {
	return path.Ext(key) == PackageExt
}

// IsFragmentKey reports whether key names a fragment object
func IsFragmentKey(key string) bool {
	return path.Ext(key) == FragmentExt
}

// FragmentKey returns the fragment key of a package key
func FragmentKey(pkgKey string) string {
	return strings.TrimSuffix(pkgKey, path.Ext(pkgKey)) + FragmentExt
}

// PackageKey returns the package key a fragment key belongs to
func PackageKey(fragmentKey string) string {
	return strings.TrimSuffix(fragmentKey, path.Ext(fragmentKey)) + PackageExt
}

// Dir returns the directory of a key; the repository root is ""
func Dir(key string) string {
	d := path.Dir(key)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// Base returns the last segment of a key
func Base(key string) string {
	return path.Base(key)
}

// DirPrefix returns the listing prefix for objects under dir. The root
// directory lists with no prefix.
func DirPrefix(dir string) string {
	if dir == "" {
		return ""
	}
	return strings.TrimSuffix(dir, "/") + "/"
}

// RepodataPrefix returns the listing prefix of the merged index of dir
func RepodataPrefix(dir string) string {
	return DirPrefix(Join(dir, RepodataDir))
}

// ParentSegment returns the last segment of the parent directory of key,
// or "" for keys at the root
func ParentSegment(key string) string {
	d := Dir(key)
	if d == "" {
		return ""
	}
	return path.Base(d)
}
