// Package identity extracts the name, version, release and architecture of
// an RPM package and derives its distribution tag.
package identity

import (
	"fmt"
	"regexp"
)

// The Fedora guidelines recommend the %autorelease macro, which expands to
// the build count followed by %{?dist} (1.fc40, 2.el9, ...). Azure Linux uses
// the same N%{?dist} scheme. A minor bump may follow the dist, so only the
// first dotted component after the number is taken.
var distPattern = regexp.MustCompile(`^\d+\.([^.]+)`)

// Identity is the immutable identity of a package
type Identity struct {
	Name    string
	Version string
	Release string
	Arch    string

	// Dist is the distribution tag derived from Release, empty when absent
	Dist string
}

// New builds an Identity and derives its distribution tag from release
func New(name, version, release, arch string) Identity {
	dist, _ := DistTag(release)
	return Identity{
		Name:    name,
		Version: version,
		Release: release,
		Arch:    arch,
		Dist:    dist,
	}
}

// DistTag returns the distribution tag embedded in an RPM release string
func DistTag(release string) (string, bool) {
	m := distPattern.FindStringSubmatch(release)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HasDist reports whether the release carries a distribution tag
func (id Identity) HasDist() bool {
	return id.Dist != ""
}

// Filename returns the normalised package filename
func (id Identity) Filename() string {
	return fmt.Sprintf("%s-%s-%s.%s.rpm", id.Name, id.Version, id.Release, id.Arch)
}

// String returns a short representation for log messages
func (id Identity) String() string {
	return fmt.Sprintf("%s (version: %s; dist: %s)", id.Name, id.Version, id.Dist)
}
