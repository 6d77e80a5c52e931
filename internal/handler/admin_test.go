package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"staffattend/internal/attendance"
	"staffattend/internal/dailytoken"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login(t, "guru01", "guru123")

	w := ts.do(t, http.MethodGet, "/v1/admin/config", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, http.MethodGet, "/v1/admin/config", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfigRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "admin123")

	w := ts.do(t, http.MethodPut, "/v1/admin/config/cutoff", tok, map[string]string{"cutoff_time": "07:30"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPut, "/v1/admin/config/geofence", tok, map[string]float64{
		"latitude": -7.446123, "longitude": 112.718456, "radius_meters": 75,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/admin/config", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"cutoff_time": "07:30",
		"geofence": {"center": {"latitude": -7.446123, "longitude": 112.718456}, "radius_meters": 75}
	}`, w.Body.String())
}

func TestConfigRejectsInvalidValues(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "admin123")

	w := ts.do(t, http.MethodPut, "/v1/admin/config/cutoff", tok, map[string]string{"cutoff_time": "25:99"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/v1/admin/config/geofence", tok, map[string]float64{
		"latitude": 0, "longitude": 0, "radius_meters": -5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/v1/admin/config", tok, map[string]any{
		"cutoff_time": "08:00",
		"geofence":    map[string]any{"center": map[string]float64{"latitude": 1, "longitude": 2}, "radius_meters": 0},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "admin123")

	w := ts.do(t, http.MethodPost, "/v1/admin/users", tok, map[string]string{"username": "guru02", "password": "pw", "role": "staff"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "pw")

	w = ts.do(t, http.MethodPost, "/v1/admin/users", tok, map[string]string{"username": "guru02", "password": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate_username", decode(t, w)["error"])

	w = ts.do(t, http.MethodPut, "/v1/admin/users/guru02/password", tok, map[string]string{"password": "newpw"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	ts.login(t, "guru02", "newpw")

	w = ts.do(t, http.MethodPut, "/v1/admin/users/ghost/password", tok, map[string]string{"password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/admin/users", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["users"], 3)

	w = ts.do(t, http.MethodDelete, "/v1/admin/users/ghost", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenEndpoints(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "admin123")

	w := ts.do(t, http.MethodGet, "/v1/admin/token", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"ATTEND_2026-10-19","date":"2026-10-19"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/admin/token.png", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	decoded, err := ts.tokens.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, dailytoken.For(ts.now), decoded)
}

func TestAttendanceReportAndExport(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login(t, "guru01", "guru123")
	admin := ts.login(t, "admin", "admin123")

	w := ts.scanJSON(t, staff, 10, ts.qr(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/admin/attendance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "2026-10-19", body["date"])
	assert.Len(t, body["records"], 1)

	w = ts.do(t, http.MethodGet, "/v1/admin/attendance?date=2026-10-18", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["records"])

	w = ts.do(t, http.MethodGet, "/v1/admin/attendance?date=19-10-2026", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/admin/attendance/export?format=csv", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="attendance.csv"`)
	rows, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, attendance.Columns, rows[0])
	assert.Equal(t, []string{"2026-10-19", "guru01", "06:45:00", "", "PRESENT"}, rows[1])

	w = ts.do(t, http.MethodGet, "/v1/admin/attendance/export?date=2026-10-19", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="attendance_2026-10-19.xlsx"`)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	cell, err := f.GetCellValue(attendance.SheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, "guru01", cell)

	w = ts.do(t, http.MethodGet, "/v1/admin/attendance/export?format=pdf", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsWithoutAuditLog(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "admin123")
	w := ts.do(t, http.MethodGet, "/v1/admin/events", tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
