package handler

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffattend/internal/dailytoken"
)

// metersNorth is the latitude d meters north of the equator origin.
func metersNorth(d float64) float64 { return d / 111194.93 }

func (ts *testServer) qr(t *testing.T) []byte {
	t.Helper()
	png, err := ts.tokens.Encode(ts.tokens.Current())
	require.NoError(t, err)
	return png
}

func (ts *testServer) scanJSON(t *testing.T, tok string, meters float64, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/v1/staff/scan", tok, map[string]any{
		"latitude":  metersNorth(meters),
		"longitude": 0,
		"image":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
	})
}

func TestDistance(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "guru01", "guru123")

	w := ts.do(t, http.MethodPost, "/v1/staff/distance", tok, map[string]float64{"latitude": metersNorth(40), "longitude": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.InDelta(t, 40, body["distance_meters"], 1)
	assert.Equal(t, true, body["inside"])

	w = ts.do(t, http.MethodPost, "/v1/staff/distance", tok, map[string]float64{"latitude": metersNorth(500), "longitude": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["inside"])

	w = ts.do(t, http.MethodPost, "/v1/staff/distance", tok, map[string]float64{"longitude": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffRoutesRejectAdmin(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "admin123")
	w := ts.scanJSON(t, tok, 0, ts.qr(t))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestScanCheckInThenCheckOut(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "guru01", "guru123")

	w := ts.scanJSON(t, tok, 10, ts.qr(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "checkin", body["action"])
	assert.Equal(t, "PRESENT", body["record"].(map[string]any)["status"])

	ts.now = ts.now.Add(8 * time.Hour)
	w = ts.scanJSON(t, tok, 10, ts.qr(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "checkout", decode(t, w)["action"])
	assert.Equal(t, "14:45:00", rec["check_out_time"])

	w = ts.scanJSON(t, tok, 10, ts.qr(t))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_checked_out", decode(t, w)["error"])

	w = ts.do(t, http.MethodGet, "/v1/staff/attendance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode(t, w)
	assert.Equal(t, "checked_out", mine["state"])
	assert.Len(t, mine["records"], 1)
	assert.NotNil(t, mine["today"])
}

func TestScanOutsideGeofence(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "guru01", "guru123")

	w := ts.scanJSON(t, tok, 300, ts.qr(t))
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, "out_of_geofence", body["error"])
	assert.InDelta(t, 300, body["distance_meters"], 1)
	assert.EqualValues(t, 100, body["radius_meters"])

	w = ts.do(t, http.MethodGet, "/v1/staff/attendance", tok, nil)
	assert.Equal(t, "absent", decode(t, w)["state"])
}

func TestScanRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "guru01", "guru123")

	stale, err := ts.tokens.Encode(dailytoken.For(ts.now.AddDate(0, 0, -1)))
	require.NoError(t, err)
	w := ts.scanJSON(t, tok, 0, stale)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "token_invalid", decode(t, w)["error"])

	w = ts.scanJSON(t, tok, 0, []byte("not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "token_unreadable", decode(t, w)["error"])

	w = ts.do(t, http.MethodPost, "/v1/staff/scan", tok, map[string]any{"latitude": 0, "longitude": 0, "image": "%%%"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (ts *testServer) scanMultipart(t *testing.T, tok, lat, lon string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("latitude", lat))
	require.NoError(t, mw.WriteField("longitude", lon))
	part, err := mw.CreateFormFile("image", "capture.png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/staff/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	ts.r.ServeHTTP(w, req)
	return w
}

func TestScanMultipart(t *testing.T) {
	ts := newTestServer(t)
	ts.now = time.Date(2026, 10, 19, 7, 0, 1, 0, time.UTC)
	tok := ts.login(t, "guru01", "guru123")

	w := ts.scanMultipart(t, tok, strconv.FormatFloat(metersNorth(20), 'f', -1, 64), "0", ts.qr(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode(t, w)["record"].(map[string]any)
	assert.Equal(t, "LATE", rec["status"])
	assert.Equal(t, "07:00:01", rec["check_in_time"])
}

func TestScanMultipartValidatesCoordinates(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "guru01", "guru123")

	for _, tc := range []struct{ lat, lon string }{
		{"91", "0"},
		{"0", "-180.5"},
		{"north", "0"},
	} {
		w := ts.scanMultipart(t, tok, tc.lat, tc.lon, ts.qr(t))
		assert.Equal(t, http.StatusBadRequest, w.Code, tc)
	}

	w := ts.do(t, http.MethodGet, "/v1/staff/attendance", tok, nil)
	assert.Equal(t, "absent", decode(t, w)["state"])
}
