package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data         []byte
	lastModified time.Time
	tags         map[string]string
}

// Memory is an in-memory Store. Each write advances a logical clock so that
// last-modified times are strictly increasing.
type Memory struct {
	mu        sync.Mutex
	objects   map[string]*memObject
	clock     time.Time
	mutations int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]*memObject),
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	m.mutations++
	return m.clock
}

// Mutations returns the number of writes, deletes, copies and tag updates
// performed so far
func (m *Memory) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations
}

// Keys returns every key in the store, sorted
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Touch rewrites an object with its current content, bumping its
// last-modified time
func (m *Memory) Touch(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	obj.lastModified = m.tick()
	return nil
}

// List implements Store
func (m *Memory) List(ctx context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Object
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(obj.data)), LastModified: obj.lastModified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Stat implements Store
func (m *Memory) Stat(ctx context.Context, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return Object{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified}, nil
}

// Exists implements Store
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Get implements Store
func (m *Memory) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put implements Store
func (m *Memory) Put(ctx context.Context, key string, r io.Reader, overwrite bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok && !overwrite {
		return fmt.Errorf("%s: %w", key, ErrExists)
	}
	m.objects[key] = &memObject{
		data:         data,
		lastModified: m.tick(),
		tags:         map[string]string{},
	}
	return nil
}

// Delete implements Store
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	delete(m.objects, key)
	m.tick()
	return nil
}

// Copy implements Store
func (m *Memory) Copy(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, ErrNotFound)
	}
	if _, ok := m.objects[dst]; ok {
		return fmt.Errorf("%s: %w", dst, ErrExists)
	}
	m.objects[dst] = &memObject{
		data:         append([]byte(nil), obj.data...),
		lastModified: m.tick(),
		tags:         copyTags(obj.tags),
	}
	return nil
}

// GetTags implements Store
func (m *Memory) GetTags(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return copyTags(obj.tags), nil
}

// SetTags implements Store
func (m *Memory) SetTags(ctx context.Context, key string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	obj.tags = copyTags(tags)
	m.tick()
	return nil
}
