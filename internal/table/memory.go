package table

import (
	"context"
	"sync"
)

// Memory keeps tables in process memory.
type Memory struct {
	mu     sync.Mutex
	tables map[string]Table
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]Table)}
}

// Table returns the backend for name.
func (m *Memory) Table(name string) Backend {
	return memoryTable{m: m, name: name}
}

type memoryTable struct {
	m    *Memory
	name string
}

func (b memoryTable) Load(_ context.Context) (Table, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	return clone(b.m.tables[b.name]), nil
}

func (b memoryTable) Save(_ context.Context, t Table) error {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	b.m.tables[b.name] = clone(t)
	return nil
}

func clone(t Table) Table {
	out := Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		out.Rows = append(out.Rows, append([]string(nil), r...))
	}
	return out
}
