package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	seq    uint64
	fields Fields
}

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	seq         uint64
	collections map[string]map[string]memoryEntry
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memoryEntry)}
}

// Get implements Store
func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Doc{ID: id, Fields: merge(nil, entry.fields)}, nil
}

// Set implements Store
func (m *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	if err := validateID(id); err != nil {
		return wrap("set", collection, id, err)
	}
	normalized, err := normalize(fields)
	if err != nil {
		return wrap("set", collection, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]memoryEntry)
		m.collections[collection] = docs
	}

	entry, exists := docs[id]
	if !exists {
		m.seq++
		entry.seq = m.seq
	}
	if exists && mergeFields {
		entry.fields = merge(entry.fields, normalized)
	} else {
		entry.fields = normalized
	}
	docs[id] = entry
	return nil
}

// Delete implements Store
func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

// Query implements Store
func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if err := validateQuery(q); err != nil {
		return nil, wrap("query", collection, "", err)
	}

	m.mu.RLock()
	type seqDoc struct {
		seq uint64
		doc Doc
	}
	all := make([]seqDoc, 0, len(m.collections[collection]))
	for id, entry := range m.collections[collection] {
		all = append(all, seqDoc{seq: entry.seq, doc: Doc{ID: id, Fields: merge(nil, entry.fields)}})
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	docs := make([]Doc, len(all))
	for i, d := range all {
		docs[i] = d.doc
	}
	return applyQuery(docs, q), nil
}

// Insert implements Store
func (m *MemoryStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := m.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// Ping implements Store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}
