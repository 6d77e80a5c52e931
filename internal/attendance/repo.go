package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is the audit trail entry of one ledger transition.
type Event struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Date      string    `json:"date"`
	When      time.Time `json:"occurred_at"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	DistanceM float64   `json:"distance_meters"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists audit events in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the events table.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_events (
			id          UUID PRIMARY KEY,
			staff_id    TEXT NOT NULL,
			action      TEXT NOT NULL,
			status      TEXT NOT NULL,
			date        TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			latitude    DOUBLE PRECISION NOT NULL,
			longitude   DOUBLE PRECISION NOT NULL,
			distance_m  DOUBLE PRECISION NOT NULL,
			image_url   TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_attendance_events_staff ON attendance_events (staff_id, occurred_at DESC);
	`)
	return err
}

// InsertEvent writes a new event. Replayed events with a known id are ignored.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.StaffID == "" {
		return Event{}, errors.New("staff id required")
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.When.IsZero() {
		evt.When = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_events (id, staff_id, action, status, date, occurred_at, latitude, longitude, distance_m, image_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING created_at
	`, evt.ID, evt.StaffID, evt.Action, evt.Status, evt.Date, evt.When, evt.Latitude, evt.Longitude, evt.DistanceM, evt.ImageURL)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// ListEvents returns events newest first, optionally for one staff member.
func (r *Repository) ListEvents(ctx context.Context, staffID string, limit, offset int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, staff_id, action, status, date, occurred_at, latitude, longitude, distance_m, image_url, created_at FROM attendance_events`
	args := []any{}
	clauses := []string{}
	if staffID != "" {
		args = append(args, staffID)
		clauses = append(clauses, "staff_id = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Event{}
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.StaffID, &evt.Action, &evt.Status, &evt.Date, &evt.When, &evt.Latitude, &evt.Longitude, &evt.DistanceM, &evt.ImageURL, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}
