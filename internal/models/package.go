package models

// Package holds the index-relevant metadata of an RPM package, as read from
// its header by the native fragment generator
type Package struct {
	// Core metadata
	Name         string
	Version      string
	Release      string
	Epoch        string
	Architecture string
	Summary      string
	Description  string
	Packager     string
	Homepage     string
	License      string
	Group        string
	Requires     []string
	Provides     []string

	// File information. Filename is the location href relative to the
	// repository root.
	Filename      string
	Size          int64
	InstalledSize int64
	SHA256Sum     string
	BuildTime     int64
}
