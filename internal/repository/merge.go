package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ralt/rpmsync/internal/fragment"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/signer"
	"github.com/ralt/rpmsync/internal/utils"
	"github.com/sirupsen/logrus"
)

// MergeResult counts the index files changed by a merge
type MergeResult struct {
	Uploaded int
	Deleted  int
}

// MergeMetadata merges the fragments of every package directly in dir and
// publishes the result under dir/repodata. New files are uploaded before
// obsolete ones are deleted.
func (r *Repository) MergeMetadata(ctx context.Context, dir string) (*MergeResult, error) {
	fragments, err := r.listFragments(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		logrus.Warnf("No metadata to merge in %q", dir)
		return &MergeResult{}, nil
	}

	work, err := os.MkdirTemp(r.workDir, "rpmsync-merge-")
	if err != nil {
		return nil, models.NewError(models.ErrFileOp, dir, err)
	}
	defer os.RemoveAll(work)

	var repos []string
	for i, key := range fragments {
		archivePath := filepath.Join(work, "fragments", strconv.Itoa(i)+fragment.ArchiveExt)
		repo := filepath.Join(work, "repos", strconv.Itoa(i))
		if err := utils.EnsureDir(filepath.Dir(archivePath)); err != nil {
			return nil, models.NewError(models.ErrFileOp, key, err)
		}
		if err := r.download(ctx, key, archivePath); err != nil {
			return nil, err
		}
		if err := r.archiver.Extract(ctx, archivePath, repo); err != nil {
			return nil, models.NewError(models.ErrMerge, key, err)
		}
		repos = append(repos, repo)
	}

	out := filepath.Join(work, "out")
	if err := r.tool.Merge(ctx, repos, out); err != nil {
		return nil, models.NewError(models.ErrMerge, dir, err)
	}
	repodataDir := fragment.RepodataDir(out)
	if info, err := os.Stat(repodataDir); err != nil || !info.IsDir() {
		return nil, models.NewError(models.ErrMerge, dir,
			fmt.Errorf("%w: no %s directory produced", models.ErrMergeFailed, layout.RepodataDir))
	}

	result, err := r.publish(ctx, dir, repodataDir)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Metadata merged for %q (%d fragments, %d files uploaded, %d deleted)",
		dir, len(fragments), result.Uploaded, result.Deleted)
	return result, nil
}

// unchanged reports whether the published object at key carries tag with
// value sum
func (r *Repository) unchanged(ctx context.Context, published map[string]bool, key, tag, sum string) (bool, error) {
	if !published[key] || sum == "" {
		return false, nil
	}
	tags, err := r.store.GetTags(ctx, key)
	if err != nil {
		return false, models.NewError(models.ErrStorage, key, err)
	}
	return tags[tag] == sum, nil
}

// listFragments returns the fragments directly in dir whose package exists
func (r *Repository) listFragments(ctx context.Context, dir string) ([]string, error) {
	objects, err := r.store.List(ctx, layout.DirPrefix(dir))
	if err != nil {
		return nil, models.NewError(models.ErrStorage, dir, err)
	}

	var fragments []string
	for _, obj := range objects {
		if !layout.IsFragmentKey(obj.Key) || layout.Dir(obj.Key) != dir {
			continue
		}
		exists, err := r.store.Exists(ctx, layout.PackageKey(obj.Key))
		if err != nil {
			return nil, models.NewError(models.ErrStorage, obj.Key, err)
		}
		if !exists {
			logrus.Warnf("Ignoring metadata %s: package is gone", obj.Key)
			continue
		}
		fragments = append(fragments, obj.Key)
	}
	return fragments, nil
}

// publish uploads the merged files in repodataDir to dir/repodata, then
// deletes the published files the merge no longer produces. Files whose
// published digest already matches are left alone.
func (r *Repository) publish(ctx context.Context, dir, repodataDir string) (*MergeResult, error) {
	remoteDir := layout.Join(dir, layout.RepodataDir)
	objects, err := r.store.List(ctx, layout.RepodataPrefix(dir))
	if err != nil {
		return nil, models.NewError(models.ErrStorage, remoteDir, err)
	}
	published := map[string]bool{}
	for _, obj := range objects {
		if layout.Dir(obj.Key) == remoteDir {
			published[obj.Key] = true
		}
	}

	names, err := utils.ListFiles(repodataDir)
	if err != nil {
		return nil, models.NewError(models.ErrFileOp, repodataDir, err)
	}

	sums := make(map[string]string, len(names))
	for _, name := range names {
		local := filepath.Join(repodataDir, name)
		sum, err := utils.CalculateChecksums(local)
		if err != nil {
			return nil, models.NewError(models.ErrFileOp, local, err)
		}
		sums[name] = sum.SHA256
	}

	result := &MergeResult{}
	produced := map[string]bool{}
	for _, name := range names {
		key := layout.Join(remoteDir, name)
		produced[key] = true

		// Signatures carry a creation time and differ on every merge, so
		// they are compared by the digest of the repomd.xml they sign.
		tag, sum := TagContentSha256, sums[name]
		if name == signer.SignatureFile {
			tag, sum = TagSignedSha256, sums[signer.RepomdFile]
		}

		same, err := r.unchanged(ctx, published, key, tag, sum)
		if err != nil {
			return nil, err
		}
		if same {
			logrus.Debugf("%s is unchanged", key)
			continue
		}

		tags := map[string]string{TagContentSha256: sums[name]}
		if name == signer.SignatureFile {
			tags[TagSignedSha256] = sums[signer.RepomdFile]
		}
		if err := r.upload(ctx, filepath.Join(repodataDir, name), key); err != nil {
			return nil, err
		}
		if err := r.store.SetTags(ctx, key, tags); err != nil {
			return nil, models.NewError(models.ErrStorage, key, err)
		}
		logrus.Debugf("Uploaded %s", key)
		result.Uploaded++
	}

	for _, obj := range objects {
		if !published[obj.Key] || produced[obj.Key] {
			continue
		}
		if err := r.store.Delete(ctx, obj.Key); err != nil {
			return nil, models.NewError(models.ErrStorage, obj.Key, err)
		}
		logrus.Debugf("Deleted obsolete %s", obj.Key)
		result.Deleted++
	}
	return result, nil
}
