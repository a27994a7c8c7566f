package store

import (
	"log/slog"
	"slices"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

// Memory is an in-process Store. Keys keep their first-insertion order,
// so a replaced record keeps its place in Entries.
type Memory struct {
	*journal
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return NewMemoryWithLogger(nil)
}

func NewMemoryWithLogger(log *slog.Logger) *Memory {
	return &Memory{journal: newJournal(&memoryBackend{records: make(map[string]shape.Record)}, log)}
}

type memoryBackend struct {
	order   []string
	records map[string]shape.Record
}

func (m *memoryBackend) get(id string) (shape.Record, bool, error) {
	rec, ok := m.records[id]
	if !ok {
		return shape.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (m *memoryBackend) put(rec shape.Record) error {
	if _, ok := m.records[rec.ObjectID]; !ok {
		m.order = append(m.order, rec.ObjectID)
	}
	m.records[rec.ObjectID] = rec.Clone()
	return nil
}

func (m *memoryBackend) remove(id string) error {
	if _, ok := m.records[id]; !ok {
		return nil
	}
	delete(m.records, id)
	if i := slices.Index(m.order, id); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return nil
}

func (m *memoryBackend) keys() ([]string, error) {
	return slices.Clone(m.order), nil
}

func (m *memoryBackend) commit(string) error {
	return nil
}
