package store

import (
	"context"
	"errors"
	"sync"

	"github.com/park285/dama-table/internal/domain"
)

var ErrDuplicateTable = errors.New("table already exists")

// MemoryStore keeps records in process memory. Used for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*domain.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*domain.Record)}
}

func (m *MemoryStore) Create(ctx context.Context, id string, snap domain.Snapshot) error {
	id = normID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[id]; exists {
		return ErrDuplicateTable
	}
	m.tables[id] = &domain.Record{ID: id, Snapshot: snap.Clone(), Status: domain.StatusOpen}
	return nil
}

func (m *MemoryStore) Status(ctx context.Context, id string) (domain.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tables[normID(id)]
	if !ok {
		return "", ErrNotFound
	}
	return rec.Status, nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tables[normID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.Snapshot = rec.Snapshot.Clone()
	return &out, nil
}

func (m *MemoryStore) SaveSnapshot(ctx context.Context, id string, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[normID(id)]
	if !ok {
		return ErrNotFound
	}
	rec.Snapshot = snap.Clone()
	return nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tables[normID(id)]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.tables, normID(id))
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
