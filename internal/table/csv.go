package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CSVDir stores each table as <dir>/<name>.csv with a header row.
type CSVDir struct {
	Dir string
}

// NewCSVDir creates the directory if needed.
func NewCSVDir(dir string) (*CSVDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &CSVDir{Dir: dir}, nil
}

// Table returns the backend for name.
func (d *CSVDir) Table(name string) Backend {
	return CSVFile{Path: filepath.Join(d.Dir, name+".csv")}
}

// CSVFile is a single CSV file holding one table.
type CSVFile struct {
	Path string
}

// Load reads the whole file. A missing or empty file is an empty table.
func (f CSVFile) Load(_ context.Context) (Table, error) {
	fh, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", f.Path, err)
	}
	t := New(header...)
	rows, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", f.Path, err)
	}
	t.Rows = rows
	return t, nil
}

// Save rewrites the whole file through a temp file and rename.
func (f CSVFile) Save(_ context.Context, t Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Columns); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}
