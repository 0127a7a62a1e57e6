package identity

import (
	"fmt"
	"io"

	"github.com/ralt/rpmsync/internal/models"
	"github.com/sassoftware/go-rpmutils"
)

// Reader extracts a package identity from raw package bytes
type Reader interface {
	Read(r io.Reader) (Identity, error)
}

// RPMReader reads identities from RPM headers
type RPMReader struct{}

// Read parses the RPM lead and headers from r. Name and version are
// required; release and architecture default to empty strings.
func (RPMReader) Read(r io.Reader) (Identity, error) {
	rpm, err := rpmutils.ReadRpm(r)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: failed to read RPM: %v", models.ErrMalformedPackage, err)
	}

	name, err := requiredTag(rpm, rpmutils.NAME, "name")
	if err != nil {
		return Identity{}, err
	}
	version, err := requiredTag(rpm, rpmutils.VERSION, "version")
	if err != nil {
		return Identity{}, err
	}

	release, _ := StringTag(rpm, rpmutils.RELEASE)
	arch, _ := StringTag(rpm, rpmutils.ARCH)

	return New(name, version, release, arch), nil
}

func requiredTag(rpm *rpmutils.Rpm, tag int, label string) (string, error) {
	v, ok := StringTag(rpm, tag)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing %s header", models.ErrMalformedPackage, label)
	}
	return v, nil
}

// StringTag safely gets a string tag from an RPM header
func StringTag(rpm *rpmutils.Rpm, tag int) (string, bool) {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return "", false
	}

	switch v := val.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case []string:
		if len(v) > 0 {
			return v[0], true
		}
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}
