package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process memory. It backs local development
// runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

type memoryObject struct {
	data     []byte
	opts     ObjectOptions
	modified time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blobs"
	}
	return &MemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts ObjectOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short upload: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, opts: opts, modified: time.Now().UTC()}
	return nil
}

// Delete is idempotent like an S3 DeleteObject.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) URLFor(key string) string {
	return m.baseURL + "/" + url.PathEscape(key)
}

func (m *MemoryStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error) {
	if !m.Has(key) {
		return "", fmt.Errorf("object %s not found", key)
	}
	query := url.Values{}
	query.Set("expires", time.Now().Add(expiry).UTC().Format(time.RFC3339))
	if disposition := contentDisposition(downloadName); disposition != "" {
		query.Set("response-content-disposition", disposition)
	}
	return m.URLFor(key) + "?" + query.Encode(), nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make([]ObjectInfo, 0, len(m.objects))
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *MemoryStore) EnsureBucket(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Read returns a copy of the stored bytes.
func (m *MemoryStore) Read(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Options returns what the blob was written with.
func (m *MemoryStore) Options(key string) (ObjectOptions, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.opts, ok
}

// Touch overrides a blob's modification time.
func (m *MemoryStore) Touch(key string, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obj, ok := m.objects[key]; ok {
		obj.modified = modified
		m.objects[key] = obj
	}
}
