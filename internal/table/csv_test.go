package table

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRoundTrip(t *testing.T) {
	dir, err := NewCSVDir(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	ctx := context.Background()
	b := dir.Table("attendance")

	empty, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Columns)

	tb := New("date", "staff_id", "check_in_time", "check_out_time", "status")
	tb.Append(map[string]string{"date": "2026-10-19", "staff_id": "guru01", "check_in_time": "06:59:59", "status": "PRESENT"})
	require.NoError(t, b.Save(ctx, tb))

	raw, err := os.ReadFile(filepath.Join(dir.Dir, "attendance.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,staff_id,check_in_time,check_out_time,status\n2026-10-19,guru01,06:59:59,,PRESENT\n", string(raw))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, tb, got)
}

func TestCSVEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	got, err := CSVFile{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Rows)
}
