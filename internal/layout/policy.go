// Package layout maps package identities to their canonical storage keys
// and names the other objects of the repository layout.
package layout

import (
	"fmt"
	"path"
	"regexp"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/sirupsen/logrus"
)

// Repository modes
const (
	ModeDistribution = "distribution"
	ModeFlat         = "flat"
)

// Most distribution tags are a short letter code followed by a version
// number: fc34 (Fedora 34), el7 (RHEL 7), cm2 (Azure Linux 2).
var bucketPattern = regexp.MustCompile(`^([a-z]+)(\d+)$`)

// PathPolicy computes the canonical key of a package. Implementations must
// be pure: the same identity always yields the same key.
type PathPolicy interface {
	Path(id identity.Identity) string
}

// Distribution places packages under <root>/<letters>/<digits>/, or under
// <root>/rejected/ when the distribution tag is absent or unrecognised
type Distribution struct {
	Root string
}

// Path implements PathPolicy
func (d Distribution) Path(id identity.Identity) string {
	filename := id.Filename()

	var p string
	if letters, digits, ok := Bucket(id.Dist); ok {
		p = Join(d.Root, letters, digits, filename)
	} else {
		p = Join(d.Root, RejectedDir, filename)
	}

	logrus.Debugf("Package %s belongs as %s", id, p)
	return p
}

// Flat places every package directly under <root>/
type Flat struct {
	Root string
}

// Path implements PathPolicy
func (f Flat) Path(id identity.Identity) string {
	p := Join(f.Root, id.Filename())
	logrus.Debugf("Package %s belongs as %s", id, p)
	return p
}

// Bucket splits a distribution tag into its letter and digit components
func Bucket(dist string) (letters, digits string, ok bool) {
	m := bucketPattern.FindStringSubmatch(dist)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ForMode returns the policy for a repository mode
func ForMode(mode, root string) (PathPolicy, error) {
	switch mode {
	case ModeDistribution, "":
		return Distribution{Root: root}, nil
	case ModeFlat:
		return Flat{Root: root}, nil
	default:
		return nil, fmt.Errorf("invalid repo type: %s", mode)
	}
}

// Join joins key segments, dropping empty ones. The result never has a
// leading or trailing slash.
func Join(elem ...string) string {
	p := path.Join(elem...)
	if p == "." || p == "/" {
		return ""
	}
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
