// Package settings holds the school-wide attendance configuration: the
// admission cutoff and the geofence around the school.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"staffattend/internal/geo"
	"staffattend/internal/table"
)

var (
	ErrInvalidRadius = errors.New("radius must be positive")
	ErrInvalidClock  = errors.New("time must be HH:MM")
)

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// MustClock is ParseClock for constants.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// OnTime reports whether the time of day of t is at or before c. Any fraction
// past the cutoff minute counts as after it.
func (c Clock) OnTime(t time.Time) bool {
	return sinceMidnight(t) <= c.offset()
}

// Before reports whether the time of day of t is strictly before c.
func (c Clock) Before(t time.Time) bool {
	return sinceMidnight(t) < c.offset()
}

func (c Clock) offset() time.Duration { return time.Duration(c) * time.Minute }

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// SchoolConfig is the singleton configuration.
type SchoolConfig struct {
	Cutoff Clock     `json:"cutoff_time"`
	Fence  geo.Fence `json:"geofence"`
}

// Default returns the configuration used until an admin saves one.
func Default(radiusMeters float64) SchoolConfig {
	if radiusMeters <= 0 {
		radiusMeters = 50
	}
	return SchoolConfig{
		Cutoff: MustClock("07:00"),
		Fence: geo.Fence{
			Center:       geo.Point{Lat: -7.446123, Lon: 112.718456},
			RadiusMeters: radiusMeters,
		},
	}
}

var (
	cutoffColumns = []string{"cutoff_time"}
	fenceColumns  = []string{"latitude", "longitude", "radius_meters"}
)

// Store reads and overwrites the configuration tables.
type Store struct {
	mu       sync.Mutex
	cutoff   *table.Store
	fence    *table.Store
	defaults SchoolConfig
}

// New creates a store on the config and geofence tables.
func New(config, geofence table.Backend, defaults SchoolConfig) *Store {
	return &Store{
		cutoff:   table.NewStore(config, cutoffColumns...),
		fence:    table.NewStore(geofence, fenceColumns...),
		defaults: defaults,
	}
}

// Get returns the saved configuration, falling back to defaults for any part
// that was never saved.
func (s *Store) Get(ctx context.Context) (SchoolConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.defaults

	err := s.cutoff.View(ctx, func(t table.Table) error {
		if len(t.Rows) == 0 || t.Cell(0, "cutoff_time") == "" {
			return nil
		}
		c, err := ParseClock(t.Cell(0, "cutoff_time"))
		if err != nil {
			return err
		}
		cfg.Cutoff = c
		return nil
	})
	if err != nil {
		return SchoolConfig{}, fmt.Errorf("load cutoff: %w", err)
	}

	err = s.fence.View(ctx, func(t table.Table) error {
		if len(t.Rows) == 0 {
			return nil
		}
		f, err := parseFence(t)
		if err != nil {
			return err
		}
		cfg.Fence = f
		return nil
	})
	if err != nil {
		return SchoolConfig{}, fmt.Errorf("load geofence: %w", err)
	}
	return cfg, nil
}

// Set overwrites the whole configuration.
func (s *Store) Set(ctx context.Context, cfg SchoolConfig) error {
	if cfg.Fence.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeCutoff(ctx, cfg.Cutoff); err != nil {
		return err
	}
	return s.writeFence(ctx, cfg.Fence)
}

// SetCutoff overwrites only the cutoff time.
func (s *Store) SetCutoff(ctx context.Context, c Clock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCutoff(ctx, c)
}

// SetFence overwrites only the geofence.
func (s *Store) SetFence(ctx context.Context, f geo.Fence) error {
	if f.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFence(ctx, f)
}

func (s *Store) writeCutoff(ctx context.Context, c Clock) error {
	return s.cutoff.Update(ctx, func(t *table.Table) error {
		*t = table.New(cutoffColumns...)
		t.Append(map[string]string{"cutoff_time": c.String()})
		return nil
	})
}

func (s *Store) writeFence(ctx context.Context, f geo.Fence) error {
	return s.fence.Update(ctx, func(t *table.Table) error {
		*t = table.New(fenceColumns...)
		t.Append(map[string]string{
			"latitude":      strconv.FormatFloat(f.Center.Lat, 'f', -1, 64),
			"longitude":     strconv.FormatFloat(f.Center.Lon, 'f', -1, 64),
			"radius_meters": strconv.FormatFloat(f.RadiusMeters, 'f', -1, 64),
		})
		return nil
	})
}

func parseFence(t table.Table) (geo.Fence, error) {
	lat, err := strconv.ParseFloat(t.Cell(0, "latitude"), 64)
	if err != nil {
		return geo.Fence{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(t.Cell(0, "longitude"), 64)
	if err != nil {
		return geo.Fence{}, fmt.Errorf("longitude: %w", err)
	}
	r, err := strconv.ParseFloat(t.Cell(0, "radius_meters"), 64)
	if err != nil {
		return geo.Fence{}, fmt.Errorf("radius_meters: %w", err)
	}
	return geo.Fence{Center: geo.Point{Lat: lat, Lon: lon}, RadiusMeters: r}, nil
}
