package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the common contract against a store implementation
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "upload/a.rpm", strings.NewReader("aaa"), false))
	require.NoError(t, s.Put(ctx, "cm/2/b.rpm", strings.NewReader("bbbb"), false))
	require.NoError(t, s.Put(ctx, "cm/20/c.rpm", strings.NewReader("c"), false))

	// Put without overwrite refuses to clobber.
	err := s.Put(ctx, "upload/a.rpm", strings.NewReader("zzz"), false)
	assert.True(t, errors.Is(err, ErrExists))

	objs, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, "cm/2/b.rpm", objs[0].Key)
	assert.Equal(t, "cm/20/c.rpm", objs[1].Key)
	assert.Equal(t, "upload/a.rpm", objs[2].Key)

	objs, err = s.List(ctx, "cm/2/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "cm/2/b.rpm", objs[0].Key)
	assert.Equal(t, int64(4), objs[0].Size)

	objs, err = s.List(ctx, "nothing/")
	require.NoError(t, err)
	assert.Empty(t, objs)

	// Tags
	tags, err := s.GetTags(ctx, "cm/2/b.rpm")
	require.NoError(t, err)
	assert.Empty(t, tags)
	require.NoError(t, s.SetTags(ctx, "cm/2/b.rpm", map[string]string{"k": "v"}))
	tags, err = s.GetTags(ctx, "cm/2/b.rpm")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, tags)

	// Setting tags does not change last-modified.
	before, err := s.Stat(ctx, "cm/2/b.rpm")
	require.NoError(t, err)
	require.NoError(t, s.SetTags(ctx, "cm/2/b.rpm", map[string]string{"k": "w"}))
	after, err := s.Stat(ctx, "cm/2/b.rpm")
	require.NoError(t, err)
	assert.Equal(t, Timestamp(before.LastModified), Timestamp(after.LastModified))

	// Copy keeps tags and refuses occupied destinations.
	require.NoError(t, s.Copy(ctx, "cm/2/b.rpm", "cm/2/copy.rpm"))
	tags, err = s.GetTags(ctx, "cm/2/copy.rpm")
	require.NoError(t, err)
	assert.Equal(t, "w", tags["k"])
	err = s.Copy(ctx, "upload/a.rpm", "cm/2/copy.rpm")
	assert.True(t, errors.Is(err, ErrExists))

	// Overwriting replaces content and clears tags.
	require.NoError(t, s.Put(ctx, "cm/2/b.rpm", strings.NewReader("new"), true))
	tags, err = s.GetTags(ctx, "cm/2/b.rpm")
	require.NoError(t, err)
	assert.Empty(t, tags)

	rc, err := s.Get(ctx, "cm/2/b.rpm")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "new", string(data))

	// Missing objects
	_, err = s.Stat(ctx, "missing.rpm")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Get(ctx, "missing.rpm")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetTags(ctx, "missing.rpm")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "missing.rpm"), ErrNotFound))

	exists, err := s.Exists(ctx, "upload/a.rpm")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, s.Delete(ctx, "upload/a.rpm"))
	exists, err = s.Exists(ctx, "upload/a.rpm")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryLastModifiedAdvances(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "a", strings.NewReader("x"), false))
	first, err := m.Stat(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Touch("a"))
	second, err := m.Stat(ctx, "a")
	require.NoError(t, err)
	assert.True(t, second.LastModified.After(first.LastModified))
	assert.Equal(t, []string{"a"}, m.Keys())
}

func TestMemoryMutations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "a", strings.NewReader("x"), false))
	_, _ = m.List(ctx, "")
	_, _ = m.GetTags(ctx, "a")
	_, _ = m.Stat(ctx, "a")
	assert.Equal(t, 1, m.Mutations())

	require.NoError(t, m.SetTags(ctx, "a", map[string]string{"k": "v"}))
	require.NoError(t, m.Delete(ctx, "a"))
	assert.Equal(t, 3, m.Mutations())
}

func TestFSStore(t *testing.T) {
	exerciseStore(t, NewFSStore(t.TempDir()))
}

func TestFSStoreHidesMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())
	require.NoError(t, s.Put(ctx, "a.rpm", strings.NewReader("x"), false))
	require.NoError(t, s.SetTags(ctx, "a.rpm", map[string]string{"k": "v"}))

	objs, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "a.rpm", objs[0].Key)
}

func TestFSStorePicksUpForeignFiles(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())

	// A file dropped into the tree without going through the store.
	f, err := s.Filesystem().Create("upload/dropped.rpm")
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	obj, err := s.Stat(ctx, "upload/dropped.rpm")
	require.NoError(t, err)
	assert.False(t, obj.LastModified.IsZero())

	tags, err := s.GetTags(ctx, "upload/dropped.rpm")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrNotFound))
	assert.False(t, IsTransient(ErrExists))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(errors.New("connection reset")))
}

func TestTimestampIsStable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "a", strings.NewReader("x"), false))
	a, _ := m.Stat(ctx, "a")
	b, _ := m.Stat(ctx, "a")
	assert.Equal(t, Timestamp(a.LastModified), Timestamp(b.LastModified))
}
