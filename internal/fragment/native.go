package fragment

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/signer"
	"github.com/ralt/rpmsync/internal/utils"
	"github.com/sirupsen/logrus"
)

// Native generates and merges primary metadata in process. Its output only
// depends on its input: timestamps come from package build times and
// packages are sorted, so identical input gives byte-identical output.
type Native struct {
	parse       Parser
	compression string
	signer      signer.Signer
}

// NativeOption configures a Native tool
type NativeOption func(*Native)

// WithParser replaces the RPM header parser
func WithParser(p Parser) NativeOption {
	return func(n *Native) {
		n.parse = p
	}
}

// WithCompression selects the compression of primary.xml
func WithCompression(kind string) NativeOption {
	return func(n *Native) {
		n.compression = kind
	}
}

// WithSigner signs merged repomd.xml files. A nil signer disables signing.
func WithSigner(s signer.Signer) NativeOption {
	return func(n *Native) {
		n.signer = s
	}
}

// NewNative creates the in-process tool
func NewNative(opts ...NativeOption) *Native {
	n := &Native{
		parse:       ParsePackage,
		compression: utils.CompressionGzip,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Generate indexes every package below root
func (n *Native) Generate(ctx context.Context, root string) error {
	var packages []xmlPkg

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == layout.RepodataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), layout.PackageExt) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pkg, err := n.parse(path)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		pkg.Filename = filepath.ToSlash(rel)
		packages = append(packages, toXMLPkg(pkg))
		logrus.Debugf("Indexed %s-%s-%s.%s", pkg.Name, pkg.Version, pkg.Release, pkg.Architecture)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrFragmentGeneration, err)
	}

	if err := n.write(root, packages, false); err != nil {
		return fmt.Errorf("%w: %v", models.ErrFragmentGeneration, err)
	}
	return nil
}

// Merge concatenates the primary metadata of every repo, keeping all
// package versions
func (n *Native) Merge(ctx context.Context, repos []string, out string) error {
	if len(repos) == 0 {
		return fmt.Errorf("%w: no repositories to merge", models.ErrMergeFailed)
	}

	var packages []xmlPkg
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkgs, err := readPrimary(repo)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", models.ErrMergeFailed, repo, err)
		}
		packages = append(packages, pkgs...)
	}

	if err := n.write(out, packages, true); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMergeFailed, err)
	}
	logrus.Debugf("Merged %d repositories (%d packages) into %s", len(repos), len(packages), out)
	return nil
}

func (n *Native) write(root string, packages []xmlPkg, sign bool) error {
	sortPackages(packages)

	var revision int64
	for _, pkg := range packages {
		if pkg.Time.Build > revision {
			revision = pkg.Time.Build
		}
	}

	primary, repomdXML, err := buildPrimary(packages, n.compression, revision)
	if err != nil {
		return err
	}

	repodataDir := RepodataDir(root)
	if err := utils.EnsureDir(repodataDir); err != nil {
		return err
	}
	if err := utils.WriteFile(filepath.Join(root, filepath.FromSlash(primary.href)), primary.compressed, 0644); err != nil {
		return fmt.Errorf("failed to write primary metadata: %w", err)
	}
	if err := utils.WriteFile(filepath.Join(repodataDir, signer.RepomdFile), repomdXML, 0644); err != nil {
		return fmt.Errorf("failed to write repomd.xml: %w", err)
	}

	if sign && n.signer != nil {
		if err := signer.SignRepodata(n.signer, repodataDir); err != nil {
			return err
		}
	}
	return nil
}

// readPrimary returns the packages listed in the primary metadata of repo
func readPrimary(repo string) ([]xmlPkg, error) {
	data, err := os.ReadFile(filepath.Join(RepodataDir(repo), "repomd.xml"))
	if err != nil {
		return nil, err
	}
	md, err := unmarshalRepomd(data)
	if err != nil {
		return nil, err
	}

	for _, d := range md.Data {
		if d.Type != "primary" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(repo, filepath.FromSlash(d.Location.Href)))
		if err != nil {
			return nil, err
		}
		if d.Checksum.Type == "sha256" && utils.SHA256(raw) != d.Checksum.Value {
			return nil, fmt.Errorf("checksum mismatch for %s", d.Location.Href)
		}
		primaryXML, err := utils.DecompressFile(d.Location.Href, raw)
		if err != nil {
			return nil, err
		}
		return unmarshalPrimary(primaryXML)
	}
	return nil, fmt.Errorf("no primary metadata in %s", repo)
}

func sortPackages(packages []xmlPkg) {
	sort.SliceStable(packages, func(i, j int) bool {
		a, b := packages[i], packages[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Version.Ver != b.Version.Ver {
			return a.Version.Ver < b.Version.Ver
		}
		if a.Version.Rel != b.Version.Rel {
			return a.Version.Rel < b.Version.Rel
		}
		if a.Arch != b.Arch {
			return a.Arch < b.Arch
		}
		return a.Location.Href < b.Location.Href
	})
}
