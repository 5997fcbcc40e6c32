// Package memory keeps node results in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smallnest/nodeflow/store"
)

// MemoryResultStore provides in-memory result storage
type MemoryResultStore struct {
	records map[string]*store.Record
	mutex   sync.RWMutex
}

// NewMemoryResultStore creates a new in-memory result store
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		records: make(map[string]*store.Record),
	}
}

// Save implements store.ResultStore
func (m *MemoryResultStore) Save(_ context.Context, record *store.Record) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.records[record.ID] = record
	return nil
}

// Load implements store.ResultStore
func (m *MemoryResultStore) Load(_ context.Context, recordID string) (*store.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	record, exists := m.records[recordID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, recordID)
	}

	return record, nil
}

// List implements store.ResultStore
func (m *MemoryResultStore) List(_ context.Context, runID string) ([]*store.Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var records []*store.Record
	for _, record := range m.records {
		if record.RunID == runID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

// Delete implements store.ResultStore
func (m *MemoryResultStore) Delete(_ context.Context, recordID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.records, recordID)
	return nil
}

// Clear implements store.ResultStore
func (m *MemoryResultStore) Clear(_ context.Context, runID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, record := range m.records {
		if record.RunID == runID {
			delete(m.records, id)
		}
	}

	return nil
}
