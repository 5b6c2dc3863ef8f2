package storage

import (
	"context"
	"sync"
)

// NoopArchive discards documents. It is used when archiving is disabled.
type NoopArchive struct{}

// Archive returns an empty key
func (NoopArchive) Archive(context.Context, Document) (string, error) {
	return "", nil
}

// MemoryArchive keeps documents in memory, keyed like S3Archive
type MemoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	prefix  string
}

// NewMemoryArchive creates a MemoryArchive
func NewMemoryArchive(prefix string) *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte), prefix: prefix}
}

// Archive stores a copy of the document
func (m *MemoryArchive) Archive(_ context.Context, doc Document) (string, error) {
	key := doc.ObjectKey(m.prefix)
	data := make([]byte, len(doc.Data))
	copy(data, doc.Data)

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

// Get returns a stored document
func (m *MemoryArchive) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored documents
func (m *MemoryArchive) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
