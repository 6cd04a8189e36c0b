package backup

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrDocumentNotFound is returned by Store.Get for a missing path.
var ErrDocumentNotFound = errors.New("document not found")

const (
	rootCollection     = "backups"
	sessionsCollection = "sessions"
	personsCollection  = "persons"
	topicsCollection   = "topics"
)

// Document is one JSON body addressed by a slash-separated path whose
// segments alternate collection/document.
type Document struct {
	Path string
	Data []byte
}

// ID is the last path segment.
func (d Document) ID() string {
	return path.Base(d.Path)
}

// Store is a remote document database.
type Store interface {
	Set(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	// List returns the documents directly inside a collection.
	List(ctx context.Context, collection string) ([]Document, error)
	Delete(ctx context.Context, path string) error
}

func sessionsPath(userID string) string {
	return path.Join(rootCollection, userID, sessionsCollection)
}

func sessionPath(userID, sessionID string) string {
	return path.Join(sessionsPath(userID), sessionID)
}

func personsPath(userID, sessionID string) string {
	return path.Join(sessionPath(userID, sessionID), personsCollection)
}

func topicsPath(userID, sessionID string) string {
	return path.Join(sessionPath(userID, sessionID), topicsCollection)
}

// parent returns the collection that holds the document at p.
func parent(p string) string {
	return path.Dir(p)
}

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Set(_ context.Context, p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[p] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[p]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	collection = strings.TrimSuffix(collection, "/")
	var res []Document
	for p, data := range m.docs {
		if parent(p) == collection {
			res = append(res, Document{Path: p, Data: append([]byte(nil), data...)})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Path < res[j].Path })
	return res, nil
}

func (m *MemoryStore) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, p)
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
