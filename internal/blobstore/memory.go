package blobstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type memoryObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	etag        string
}

// MemoryStore is an in-memory Store, intended for testing.
type MemoryStore struct {
	name       string
	mu         sync.RWMutex
	objects    map[string]*memoryObject
	genCounter atomic.Int64
}

// NewMemoryStore creates a new in-memory Store with the given name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:    name,
		objects: make(map[string]*memoryObject),
	}
}

func (m *MemoryStore) Name() string {
	return m.name
}

func (m *MemoryStore) URL(key string) string {
	return fmt.Sprintf("memory://%s/%s", m.name, key)
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, opts PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &memoryObject{
		data:        data,
		contentType: opts.ContentType,
		metadata:    meta,
		etag:        fmt.Sprintf(`"%d"`, m.genCounter.Add(1)),
	}
	return nil
}

func (m *MemoryStore) Head(_ context.Context, key string) (ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return ObjectMeta{}, ErrNotFound
	}
	return ObjectMeta{ETag: obj.etag, Size: int64(len(obj.data))}, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			results = append(results, ObjectInfo{Key: k, Size: int64(len(obj.data)), ETag: obj.etag})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

// Object returns a copy of the stored bytes and content type for key.
func (m *MemoryStore) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, obj.contentType, true
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
