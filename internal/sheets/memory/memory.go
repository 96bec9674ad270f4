package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var _ sheets.TransactionMirror = (*Mirror)(nil)

// Mirror is an in-process TransactionMirror for local runs and tests.
type Mirror struct {
	mu    sync.Mutex
	rows  map[string][]any
	order []string
}

func New() *Mirror {
	return &Mirror{rows: make(map[string][]any)}
}

func (m *Mirror) Upsert(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.rows[t.ID] = sheets.Row(t)
	return nil
}

func (m *Mirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return nil
	}
	delete(m.rows, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rows returns the mirrored rows in first-written order.
func (m *Mirror) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, append([]any(nil), m.rows[id]...))
	}
	return out
}

// Row returns the mirrored row for id.
func (m *Mirror) Row(id string) ([]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	return r, ok
}
