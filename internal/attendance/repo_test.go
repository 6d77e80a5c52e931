package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 10, 19, 7, 0, 1, 0, time.UTC)
	when := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO attendance_events").
		WithArgs("e1", "guru01", "checkin", "PRESENT", "2026-10-19", when, 1.0, 2.0, 12.5, "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	repo := NewRepository(db)
	evt, err := repo.InsertEvent(context.Background(), Event{
		ID: "e1", StaffID: "guru01", Action: "checkin", Status: "PRESENT", Date: "2026-10-19",
		When: when, Latitude: 1, Longitude: 2, DistanceM: 12.5,
	})
	require.NoError(t, err)
	assert.Equal(t, created, evt.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEventRequiresStaff(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = NewRepository(db).InsertEvent(context.Background(), Event{})
	assert.Error(t, err)
}

func TestListEventsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	when := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM attendance_events WHERE staff_id = \$1 ORDER BY occurred_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("guru01", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "staff_id", "action", "status", "date", "occurred_at", "latitude", "longitude", "distance_m", "image_url", "created_at"}).
			AddRow("e1", "guru01", "checkin", "PRESENT", "2026-10-19", when, 1.0, 2.0, 3.0, "", when))

	events, err := NewRepository(db).ListEvents(context.Background(), "guru01", 0, -5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "checkin", events[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
