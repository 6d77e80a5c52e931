package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"staffattend/internal/attendance"
	"staffattend/internal/auth"
	"staffattend/internal/geo"
)

type locationRequest struct {
	Latitude  *float64 `form:"latitude" json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `form:"longitude" json:"longitude" binding:"required,min=-180,max=180"`
}

func (r locationRequest) point() geo.Point {
	return geo.Point{Lat: *r.Latitude, Lon: *r.Longitude}
}

func (h *Handler) distance(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "latitude and longitude required")
		return
	}
	d, inside, err := h.Attendance.Distance(c.Request.Context(), req.point())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"distance_meters": d, "inside": inside})
}

type scanJSON struct {
	locationRequest
	Image string `json:"image" binding:"required"`
}

func (h *Handler) scan(c *gin.Context) {
	req, err := readScan(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sess, _ := auth.Current(c)
	res, err := h.Attendance.Scan(c.Request.Context(), sess, req)
	if err != nil {
		if errors.Is(err, attendance.ErrOutOfGeofence) {
			fail(c, err, gin.H{"distance_meters": res.Distance, "radius_meters": res.Radius})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// readScan accepts a multipart upload with an image file, or JSON carrying
// the capture as base64 (optionally a data URL).
func readScan(c *gin.Context) (attendance.ScanRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCaptureBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		var loc locationRequest
		if err := c.ShouldBind(&loc); err != nil {
			return attendance.ScanRequest{}, errors.New("valid latitude and longitude required")
		}
		file, _, err := c.Request.FormFile("image")
		if err != nil {
			return attendance.ScanRequest{}, errors.New("image file required")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return attendance.ScanRequest{}, errors.New("read image failed")
		}
		return attendance.ScanRequest{Location: loc.point(), Image: data}, nil
	}

	var body scanJSON
	if err := c.ShouldBindJSON(&body); err != nil {
		return attendance.ScanRequest{}, errors.New("latitude, longitude and image required")
	}
	data, err := decodeImage(body.Image)
	if err != nil {
		return attendance.ScanRequest{}, err
	}
	return attendance.ScanRequest{Location: body.point(), Image: data}, nil
}

func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.New("malformed data url")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("image must be base64")
	}
	return data, nil
}

func (h *Handler) myAttendance(c *gin.Context) {
	sess, _ := auth.Current(c)
	ctx := c.Request.Context()
	ledger := h.Attendance.Ledger()

	today := attendance.DateOf(h.Tokens.Now())
	rec, found, err := ledger.Lookup(ctx, sess.Username, today)
	if err != nil {
		fail(c, err)
		return
	}
	history, err := ledger.ForStaff(ctx, sess.Username)
	if err != nil {
		fail(c, err)
		return
	}
	body := gin.H{"date": today, "state": rec.State().String(), "records": history}
	if found {
		body["today"] = rec
	}
	c.JSON(http.StatusOK, body)
}
