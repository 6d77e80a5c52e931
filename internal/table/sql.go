package table

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Dialect selects placeholder syntax for SQL.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// SQLSource stores every table as one row of app_tables.
type SQLSource struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLSource creates the app_tables relation if missing.
func NewSQLSource(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLSource, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS app_tables (
			name       TEXT PRIMARY KEY,
			col_names  TEXT NOT NULL,
			row_data   TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate app_tables: %w", err)
	}
	return &SQLSource{db: db, dialect: dialect}, nil
}

// Table returns the backend for name.
func (s *SQLSource) Table(name string) Backend {
	return sqlTable{src: s, name: name}
}

func (s *SQLSource) arg(n int) string {
	if s.dialect == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

type sqlTable struct {
	src  *SQLSource
	name string
}

func (b sqlTable) Load(ctx context.Context) (Table, error) {
	var cols, rows string
	err := b.src.db.QueryRowContext(ctx,
		`SELECT col_names, row_data FROM app_tables WHERE name = `+b.src.arg(1), b.name,
	).Scan(&cols, &rows)
	if errors.Is(err, sql.ErrNoRows) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, err
	}
	var t Table
	if err := json.Unmarshal([]byte(cols), &t.Columns); err != nil {
		return Table{}, fmt.Errorf("decode columns of %s: %w", b.name, err)
	}
	if err := json.Unmarshal([]byte(rows), &t.Rows); err != nil {
		return Table{}, fmt.Errorf("decode rows of %s: %w", b.name, err)
	}
	return t, nil
}

func (b sqlTable) Save(ctx context.Context, t Table) error {
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return err
	}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	rows, err := json.Marshal(t.Rows)
	if err != nil {
		return err
	}
	a := b.src.arg
	_, err = b.src.db.ExecContext(ctx, `
		INSERT INTO app_tables (name, col_names, row_data, updated_at)
		VALUES (`+a(1)+`, `+a(2)+`, `+a(3)+`, `+a(4)+`)
		ON CONFLICT (name) DO UPDATE SET
			col_names = excluded.col_names,
			row_data = excluded.row_data,
			updated_at = excluded.updated_at
	`, b.name, string(cols), string(rows), time.Now().UTC())
	return err
}
