package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteOpen(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "sqlite3", db.Driver)
	assert.True(t, db.Healthy(ctx))
}

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr())
	defer r.Close()
	assert.True(t, r.Healthy(context.Background()))

	mr.Close()
	assert.False(t, r.Healthy(context.Background()))
}

func TestNilHandles(t *testing.T) {
	var db *DB
	assert.False(t, db.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
}
