// Package testutil provides stand-in package files for tests. Real RPMs need
// rpmbuild or fpm to produce, so tests use a tiny text format instead and
// read it through the same identity.Reader and package parser seams the
// real RPM implementations plug into.
package testutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/ralt/rpmsync/internal/utils"
)

const magic = "FAKERPM"

// Spec describes a fake package
type Spec struct {
	Name    string
	Version string
	Release string
	Arch    string
}

// Identity returns the identity the spec parses to
func (s Spec) Identity() identity.Identity {
	return identity.New(s.Name, s.Version, s.Release, s.Arch)
}

// Filename returns the filename a build tool would give the package
func (s Spec) Filename() string {
	return s.Identity().Filename()
}

// RPM renders a fake package file
func RPM(s Spec) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, magic)
	fmt.Fprintf(&buf, "name=%s\n", s.Name)
	fmt.Fprintf(&buf, "version=%s\n", s.Version)
	if s.Release != "" {
		fmt.Fprintf(&buf, "release=%s\n", s.Release)
	}
	if s.Arch != "" {
		fmt.Fprintf(&buf, "arch=%s\n", s.Arch)
	}
	return buf.Bytes()
}

func parse(r io.Reader) (map[string]string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() || sc.Text() != magic {
		return nil, fmt.Errorf("%w: bad magic", models.ErrMalformedPackage)
	}
	fields := map[string]string{}
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), "=")
		if ok {
			fields[k] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if fields["name"] == "" || fields["version"] == "" {
		return nil, fmt.Errorf("%w: missing name or version", models.ErrMalformedPackage)
	}
	return fields, nil
}

// Reader reads fake packages
type Reader struct{}

// Read implements identity.Reader
func (Reader) Read(r io.Reader) (identity.Identity, error) {
	f, err := parse(r)
	if err != nil {
		return identity.Identity{}, err
	}
	return identity.New(f["name"], f["version"], f["release"], f["arch"]), nil
}

// ParsePackage reads a fake package file into index metadata, standing in
// for the RPM parser of the native fragment tool
func ParsePackage(path string) (*models.Package, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := parse(file)
	if err != nil {
		return nil, err
	}

	checksums, err := utils.CalculateChecksums(path)
	if err != nil {
		return nil, err
	}

	return &models.Package{
		Name:         f["name"],
		Version:      f["version"],
		Release:      f["release"],
		Epoch:        "0",
		Architecture: f["arch"],
		Summary:      f["name"] + " test package",
		Filename:     path,
		Size:         checksums.Size,
		SHA256Sum:    checksums.SHA256,
		BuildTime:    1700000000,
	}, nil
}

// Upload stores a fake package in store under key
func Upload(t testing.TB, store storage.Store, key string, s Spec) {
	t.Helper()
	if err := store.Put(context.Background(), key, bytes.NewReader(RPM(s)), true); err != nil {
		t.Fatalf("Failed to upload %s: %v", key, err)
	}
}
