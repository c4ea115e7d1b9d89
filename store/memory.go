package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a thread-safe in-process store for local development and
// tests. Rows are returned in insertion order. It does not cascade deletes.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	order []string
	rows  map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable)}
}

func (m *MemoryStore) Select(_ context.Context, table Table, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []Record{}
	t, ok := m.tables[table.Name]
	if !ok {
		return records, nil
	}

	for _, id := range t.order {
		row := t.rows[id]
		if !matches(row, q.Filter) {
			continue
		}
		records = append(records, project(row, q.Columns))
		if q.Limit > 0 && len(records) == q.Limit {
			break
		}
	}
	return records, nil
}

func (m *MemoryStore) Upsert(_ context.Context, table Table, records ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table.Name)
	for _, rec := range records {
		id, err := keyOf(table, rec)
		if err != nil {
			return opError(OpUpsert, table, err)
		}
		row, exists := t.rows[id]
		if !exists {
			row = Record{}
			t.order = append(t.order, id)
		}
		for k, v := range rec {
			row[k] = v
		}
		t.rows[id] = row
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, table Table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table.Name]
	if !ok {
		return nil
	}
	if _, exists := t.rows[id]; !exists {
		return nil
	}
	delete(t.rows, id)
	for i, key := range t.order {
		if key == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]Record)}
		m.tables[name] = t
	}
	return t
}

func matches(row Record, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := row[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func project(row Record, columns []string) Record {
	out := make(Record, len(row))
	if len(columns) == 0 {
		for k, v := range row {
			out[k] = v
		}
		return out
	}
	for _, col := range columns {
		if v, ok := row[col]; ok {
			out[col] = v
		}
	}
	return out
}
