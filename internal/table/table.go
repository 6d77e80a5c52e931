// Package table persists small named tables of string cells. Every backend
// loads and saves a whole table at once; Store serializes read-modify-write
// cycles on top of that.
package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable wraps every failure of the underlying storage.
var ErrUnavailable = errors.New("storage unavailable")

// Table is a header plus rows of string cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New returns an empty table with the given header.
func New(columns ...string) Table {
	return Table{Columns: append([]string(nil), columns...)}
}

// Index returns the position of col or -1.
func (t Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Cell returns the value of col in row i, or "" when absent.
func (t Table) Cell(i int, col string) string {
	j := t.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// SetCell writes col in row i. Unknown columns are ignored.
func (t *Table) SetCell(i int, col, value string) {
	j := t.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return
	}
	for len(t.Rows[i]) <= j {
		t.Rows[i] = append(t.Rows[i], "")
	}
	t.Rows[i][j] = value
}

// Append adds a row built from named values; missing columns become "".
func (t *Table) Append(values map[string]string) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = values[c]
	}
	t.Rows = append(t.Rows, row)
}

// Delete removes row i.
func (t *Table) Delete(i int) {
	if i < 0 || i >= len(t.Rows) {
		return
	}
	t.Rows = append(t.Rows[:i], t.Rows[i+1:]...)
}

// Find returns the first row index whose cells match all of where, or -1.
func (t Table) Find(where map[string]string) int {
	for i := range t.Rows {
		match := true
		for col, want := range where {
			if t.Cell(i, col) != want {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Conform returns a copy of t re-laid out on columns. Cells are carried over
// by column name, unknown columns are dropped and new ones are empty.
func (t Table) Conform(columns ...string) Table {
	out := New(columns...)
	out.Rows = make([][]string, 0, len(t.Rows))
	for i := range t.Rows {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = t.Cell(i, c)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Backend loads and saves one whole table. Loading a table that was never
// saved yields an empty Table and no error.
type Backend interface {
	Load(ctx context.Context) (Table, error)
	Save(ctx context.Context, t Table) error
}

// Source hands out the backend for a named table.
type Source interface {
	Table(name string) Backend
}

// Store guards a backend with an exclusive lock so that each read-modify-write
// cycle sees the result of the previous one.
type Store struct {
	mu      sync.Mutex
	backend Backend
	columns []string
}

// NewStore creates a store whose tables are always presented with columns.
func NewStore(b Backend, columns ...string) *Store {
	return &Store{backend: b, columns: columns}
}

// View loads the table and passes it to fn.
func (s *Store) View(ctx context.Context, fn func(Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(ctx)
	if err != nil {
		return err
	}
	return fn(t)
}

// Update loads the table, lets fn mutate it and saves the result. Nothing is
// written when fn returns an error.
func (s *Store) Update(ctx context.Context, fn func(*Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&t); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, t); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (Table, error) {
	t, err := s.backend.Load(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if len(s.columns) == 0 {
		return t, nil
	}
	return t.Conform(s.columns...), nil
}
