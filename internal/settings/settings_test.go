package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffattend/internal/geo"
	"staffattend/internal/table"
)

func newStore() (*Store, *table.Memory) {
	src := table.NewMemory()
	return New(src.Table("config"), src.Table("geofence"), Default(50)), src
}

func TestGetDefaults(t *testing.T) {
	s, _ := newStore()
	cfg, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "07:00", cfg.Cutoff.String())
	assert.Equal(t, 50.0, cfg.Fence.RadiusMeters)
	assert.Equal(t, -7.446123, cfg.Fence.Center.Lat)
}

func TestSetOverwrites(t *testing.T) {
	s, src := newStore()
	ctx := context.Background()
	want := SchoolConfig{
		Cutoff: MustClock("07:15"),
		Fence:  geo.Fence{Center: geo.Point{Lat: 1.5, Lon: 2.25}, RadiusMeters: 120},
	}
	require.NoError(t, s.Set(ctx, want))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := src.Table("geofence").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"latitude", "longitude", "radius_meters"}, raw.Columns)
	assert.Equal(t, [][]string{{"1.5", "2.25", "120"}}, raw.Rows)
}

func TestSetRejectsNonPositiveRadius(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	cfg := Default(50)
	cfg.Fence.RadiusMeters = 0
	assert.ErrorIs(t, s.Set(ctx, cfg), ErrInvalidRadius)
	assert.ErrorIs(t, s.SetFence(ctx, geo.Fence{RadiusMeters: -1}), ErrInvalidRadius)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Fence.RadiusMeters)
}

func TestSetCutoffKeepsFence(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	require.NoError(t, s.SetFence(ctx, geo.Fence{Center: geo.Point{Lat: 0, Lon: 0}, RadiusMeters: 100}))
	require.NoError(t, s.SetCutoff(ctx, MustClock("06:45")))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "06:45", got.Cutoff.String())
	assert.Equal(t, 100.0, got.Fence.RadiusMeters)
}

func TestCorruptCutoff(t *testing.T) {
	s, src := newStore()
	ctx := context.Background()
	bad := table.New("cutoff_time")
	bad.Append(map[string]string{"cutoff_time": "seven"})
	require.NoError(t, src.Table("config").Save(ctx, bad))

	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func day(h, m, s int) time.Time { return time.Date(2026, 10, 19, h, m, s, 0, time.UTC) }

func TestClockOnTime(t *testing.T) {
	c := MustClock("07:00")
	assert.True(t, c.OnTime(day(6, 59, 59)))
	assert.True(t, c.OnTime(day(7, 0, 0)))
	assert.False(t, c.OnTime(day(7, 0, 1)))
	assert.False(t, c.OnTime(day(7, 1, 0)))
	assert.False(t, c.OnTime(day(7, 0, 0).Add(500*time.Millisecond)))
}

func TestClockBefore(t *testing.T) {
	c := MustClock("07:00")
	assert.True(t, c.Before(day(6, 59, 59)))
	assert.False(t, c.Before(day(7, 0, 0)))
	assert.False(t, c.Before(day(7, 0, 1)))
}

func TestClockJSON(t *testing.T) {
	raw, err := json.Marshal(SchoolConfig{Cutoff: MustClock("07:05")})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cutoff_time":"07:05"`)

	var cfg SchoolConfig
	require.NoError(t, json.Unmarshal([]byte(`{"cutoff_time":"08:30","geofence":{"center":{"latitude":1,"longitude":2},"radius_meters":75}}`), &cfg))
	assert.Equal(t, "08:30", cfg.Cutoff.String())
	assert.Equal(t, 75.0, cfg.Fence.RadiusMeters)

	assert.Error(t, json.Unmarshal([]byte(`{"cutoff_time":"25:00"}`), &cfg))
}
