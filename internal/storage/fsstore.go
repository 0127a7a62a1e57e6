package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"
	"gopkg.in/yaml.v3"
)

// MetaDir holds the sidecar metadata of an FSStore. It is hidden from
// listings.
const MetaDir = ".rpmsync"

// sidecar is the on-disk metadata of one object
type sidecar struct {
	LastModified string            `yaml:"last_modified"`
	Tags         map[string]string `yaml:"tags,omitempty"`
}

// FSStore is a Store over a billy filesystem. Objects are plain files;
// their last-modified time and tags live in YAML sidecars under MetaDir so
// that they survive filesystems with coarse or synthetic modification times.
// Files copied into the tree by other means fall back to their mtime.
type FSStore struct {
	fs  billy.Filesystem
	now func() time.Time
}

// NewFSStore creates a store rooted at dir on the local filesystem
func NewFSStore(dir string) *FSStore {
	return NewFSStoreOn(osfs.New(dir))
}

// NewFSStoreOn creates a store over an existing billy filesystem
func NewFSStoreOn(fs billy.Filesystem) *FSStore {
	return &FSStore{fs: fs, now: time.Now}
}

// Filesystem returns the underlying filesystem
func (s *FSStore) Filesystem() billy.Filesystem {
	return s.fs
}

func metaPath(key string) string {
	return path.Join(MetaDir, key+".yaml")
}

func (s *FSStore) readSidecar(key string) (*sidecar, error) {
	f, err := s.fs.Open(metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var sc sidecar
	if err := yaml.NewDecoder(f).Decode(&sc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", key, err)
	}
	return &sc, nil
}

func (s *FSStore) writeSidecar(key string, sc *sidecar) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return s.writeAtomic(metaPath(key), strings.NewReader(string(data)))
}

// writeAtomic stages data in a temporary file next to the target and
// renames it into place
func (s *FSStore) writeAtomic(name string, r io.Reader) error {
	dir := path.Dir(name)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := s.fs.TempFile(dir, ".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, name); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (s *FSStore) stat(key string) (Object, error) {
	info, err := s.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return Object{}, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return Object{}, err
	}
	if info.IsDir() {
		return Object{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	obj := Object{Key: key, Size: info.Size(), LastModified: info.ModTime()}

	sc, err := s.readSidecar(key)
	if err != nil {
		return Object{}, err
	}
	if sc != nil && sc.LastModified != "" {
		t, err := time.Parse(time.RFC3339Nano, sc.LastModified)
		if err != nil {
			logrus.Warnf("Ignoring bad last_modified for %s: %v", key, err)
		} else {
			obj.LastModified = t
		}
	}
	return obj, nil
}

// List implements Store
func (s *FSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	if err := s.walk(ctx, "", prefix, &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *FSStore) walk(ctx context.Context, dir, prefix string, out *[]Object) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		key := entry.Name()
		if dir != "" {
			key = dir + "/" + entry.Name()
		}

		if entry.IsDir() {
			if key == MetaDir {
				continue
			}
			// Only descend where the prefix can still match.
			if !strings.HasPrefix(key+"/", prefix) && !strings.HasPrefix(prefix, key+"/") {
				continue
			}
			if err := s.walk(ctx, key, prefix, out); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(entry.Name(), ".tmp-") || !strings.HasPrefix(key, prefix) {
			continue
		}

		obj, err := s.stat(key)
		if err != nil {
			return err
		}
		*out = append(*out, obj)
	}
	return nil
}

// Stat implements Store
func (s *FSStore) Stat(ctx context.Context, key string) (Object, error) {
	return s.stat(key)
}

// Exists implements Store
func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.stat(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Get implements Store
func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

// Put implements Store
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, overwrite bool) error {
	if !overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", key, ErrExists)
		}
	}

	if err := s.writeAtomic(key, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return s.writeSidecar(key, &sidecar{LastModified: Timestamp(s.now())})
}

// Delete implements Store
func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := s.fs.Remove(key); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	if err := s.fs.Remove(metaPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Copy implements Store
func (s *FSStore) Copy(ctx context.Context, src, dst string) error {
	exists, err := s.Exists(ctx, dst)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", dst, ErrExists)
	}

	tags, err := s.GetTags(ctx, src)
	if err != nil {
		return err
	}

	in, err := s.Get(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := s.writeAtomic(dst, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return s.writeSidecar(dst, &sidecar{LastModified: Timestamp(s.now()), Tags: tags})
}

// GetTags implements Store
func (s *FSStore) GetTags(ctx context.Context, key string) (map[string]string, error) {
	if _, err := s.stat(key); err != nil {
		return nil, err
	}
	sc, err := s.readSidecar(key)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return map[string]string{}, nil
	}
	return copyTags(sc.Tags), nil
}

// SetTags implements Store
func (s *FSStore) SetTags(ctx context.Context, key string, tags map[string]string) error {
	obj, err := s.stat(key)
	if err != nil {
		return err
	}
	return s.writeSidecar(key, &sidecar{
		LastModified: Timestamp(obj.LastModified),
		Tags:         copyTags(tags),
	})
}
