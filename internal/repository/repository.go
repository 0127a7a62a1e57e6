// Package repository keeps the index metadata of an RPM repository in
// object storage consistent with the packages it holds.
package repository

import (
	"context"
	"path"
	"sort"

	"github.com/ralt/rpmsync/internal/fragment"
	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/organiser"
	"github.com/ralt/rpmsync/internal/rpmpackage"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/sirupsen/logrus"
)

// Object tags written by the synchronizer
const (
	// TagLastModified records the package timestamp a fragment was built from
	TagLastModified = "RpmLastModified"

	// TagContentSha256 records the digest of a published index file
	TagContentSha256 = "RpmContentSha256"

	// TagSignedSha256 records the digest of the repomd.xml a published
	// signature was made over
	TagSignedSha256 = "RpmSignedSha256"
)

// Options configures a Repository
type Options struct {
	// Root is the key prefix of the repository in the store
	Root string

	// UploadDir is the name of the upload directory below Root
	UploadDir string

	// WorkDir is where temporary working directories are created. Empty
	// means the OS temporary directory.
	WorkDir string

	// Reader reads package identities
	Reader identity.Reader
}

// Repository synchronises the packages and index metadata of one
// repository root
type Repository struct {
	store     storage.Store
	organiser *organiser.Organiser
	tool      fragment.Tool
	archiver  *fragment.Archiver

	root      string
	uploadDir string
	workDir   string
	reader    identity.Reader
}

// Report summarises a Process run
type Report struct {
	Organised      int
	SkippedUploads int
	Packages       int
	Regenerated    int
	Directories    int
	Uploaded       int
	Deleted        int
}

// New creates a repository over store. Uploads are relocated with policy.
func New(store storage.Store, policy layout.PathPolicy, tool fragment.Tool, opts Options) *Repository {
	uploadDir := opts.UploadDir
	if uploadDir == "" {
		uploadDir = layout.DefaultUploadDir
	}
	reader := opts.Reader
	if reader == nil {
		reader = identity.RPMReader{}
	}

	backend := organiser.NewStoreBackend(store, reader, opts.WorkDir)
	return &Repository{
		store:     store,
		organiser: organiser.New(policy, backend, layout.Join(opts.Root, uploadDir)),
		tool:      tool,
		archiver:  fragment.NewArchiver(),
		root:      opts.Root,
		uploadDir: uploadDir,
		workDir:   opts.WorkDir,
		reader:    reader,
	}
}

// Organiser returns the organiser relocating uploads
func (r *Repository) Organiser() *organiser.Organiser {
	return r.organiser
}

// Process organises the uploads, refreshes every stale fragment, then
// merges the fragments of every directory holding packages. It stops at
// the first fatal error without rolling anything back.
func (r *Repository) Process(ctx context.Context) (*Report, error) {
	report := &Report{}

	outcome, err := r.organiser.Organise(ctx)
	if outcome != nil {
		report.Organised = len(outcome.Moved)
		report.SkippedUploads = len(outcome.Skipped)
	}
	if err != nil {
		return report, err
	}

	packages, err := r.ListAllPackages(ctx)
	if err != nil {
		return report, err
	}
	report.Packages = len(packages)
	logrus.Infof("Found %d packages", len(packages))

	dirs := map[string]struct{}{}
	for _, pkg := range packages {
		regenerated, err := r.refresh(ctx, pkg)
		pkg.Close()
		if err != nil {
			return report, err
		}
		if regenerated {
			report.Regenerated++
		}
		dirs[layout.Dir(pkg.Key())] = struct{}{}
	}

	for _, dir := range sortedKeys(dirs) {
		result, err := r.MergeMetadata(ctx, dir)
		if err != nil {
			return report, err
		}
		report.Directories++
		report.Uploaded += result.Uploaded
		report.Deleted += result.Deleted
	}

	logrus.Infof("Processed repository: %d organised, %d uploads skipped, %d packages, %d fragments regenerated, %d directories merged, %d files uploaded, %d files deleted",
		report.Organised, report.SkippedUploads, report.Packages, report.Regenerated,
		report.Directories, report.Uploaded, report.Deleted)
	return report, nil
}

func (r *Repository) refresh(ctx context.Context, pkg rpmpackage.Package) (bool, error) {
	stale, err := r.CheckMetadata(ctx, pkg.Key())
	if err != nil || !stale {
		return false, err
	}
	if err := r.CreateMetadata(ctx, pkg); err != nil {
		return false, err
	}
	return true, nil
}

// ListAllPackagePaths returns the key of every classified package, sorted
func (r *Repository) ListAllPackagePaths(ctx context.Context) ([]string, error) {
	objects, err := r.store.List(ctx, layout.DirPrefix(r.root))
	if err != nil {
		return nil, models.NewError(models.ErrStorage, r.root, err)
	}

	var keys []string
	for _, obj := range objects {
		if !layout.IsPackageKey(obj.Key) || r.skipped(obj.Key) {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// ListAllPackages returns a handle on every classified package
func (r *Repository) ListAllPackages(ctx context.Context) ([]rpmpackage.Package, error) {
	keys, err := r.ListAllPackagePaths(ctx)
	if err != nil {
		return nil, err
	}

	packages := make([]rpmpackage.Package, 0, len(keys))
	for _, key := range keys {
		packages = append(packages, rpmpackage.NewRemote(r.store, key, r.reader, r.workDir))
	}
	return packages, nil
}

// skipped reports whether key waits in an upload directory or was
// rejected. Such packages never take part in index generation.
func (r *Repository) skipped(key string) bool {
	switch layout.ParentSegment(key) {
	case layout.DefaultUploadDir, layout.RejectedDir, path.Base(r.uploadDir):
		return true
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
