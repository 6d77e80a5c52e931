package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"staffattend/internal/attendance"
	"staffattend/internal/directory"
	"staffattend/internal/geo"
	"staffattend/internal/settings"
)

func (h *Handler) getConfig(c *gin.Context) {
	cfg, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) putConfig(c *gin.Context) {
	var cfg settings.SchoolConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.Settings.Set(c.Request.Context(), cfg); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type cutoffRequest struct {
	Cutoff string `form:"cutoff_time" json:"cutoff_time" binding:"required"`
}

func (h *Handler) putCutoff(c *gin.Context) {
	var req cutoffRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "cutoff_time required")
		return
	}
	clock, err := settings.ParseClock(req.Cutoff)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Settings.SetCutoff(c.Request.Context(), clock); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cutoff_time": clock})
}

type geofenceRequest struct {
	Latitude     *float64 `form:"latitude" json:"latitude" binding:"required,min=-90,max=90"`
	Longitude    *float64 `form:"longitude" json:"longitude" binding:"required,min=-180,max=180"`
	RadiusMeters float64  `form:"radius_meters" json:"radius_meters" binding:"required"`
}

func (h *Handler) putGeofence(c *gin.Context) {
	var req geofenceRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "latitude, longitude and radius_meters required")
		return
	}
	fence := geo.Fence{
		Center:       geo.Point{Lat: *req.Latitude, Lon: *req.Longitude},
		RadiusMeters: req.RadiusMeters,
	}
	if err := h.Settings.SetFence(c.Request.Context(), fence); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fence)
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.Directory.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type userRequest struct {
	Username    string `form:"username" json:"username" binding:"required"`
	Password    string `form:"password" json:"password" binding:"required"`
	Role        string `form:"role" json:"role"`
	DisplayName string `form:"display_name" json:"display_name"`
}

func (h *Handler) addUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "username and password required")
		return
	}
	acc, err := h.Directory.Add(c.Request.Context(), req.Username, req.Password, directory.ParseRole(req.Role), req.DisplayName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

type passwordRequest struct {
	Password string `form:"password" json:"password" binding:"required"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "password required")
		return
	}
	if err := h.Directory.UpdatePassword(c.Request.Context(), c.Param("username"), req.Password); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeUser(c *gin.Context) {
	if err := h.Directory.Remove(c.Request.Context(), c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) token(c *gin.Context) {
	now := h.Tokens.Now()
	c.JSON(http.StatusOK, gin.H{
		"token": h.Tokens.Current(),
		"date":  attendance.DateOf(now),
	})
}

func (h *Handler) tokenPNG(c *gin.Context) {
	png, err := h.Tokens.Encode(h.Tokens.Current())
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// dateParam reads ?date=, defaulting to today.
func (h *Handler) dateParam(c *gin.Context) (string, bool) {
	date := c.Query("date")
	if date == "" {
		return attendance.DateOf(h.Tokens.Now()), true
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func (h *Handler) attendanceByDate(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	records, err := h.Attendance.Ledger().ForDate(c.Request.Context(), date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "records": records})
}

func (h *Handler) exportAttendance(c *gin.Context) {
	ledger := h.Attendance.Ledger()
	var (
		records []attendance.Record
		err     error
		name    = "attendance"
	)
	if c.Query("date") != "" {
		date, ok := h.dateParam(c)
		if !ok {
			return
		}
		name += "_" + date
		records, err = ledger.ForDate(c.Request.Context(), date)
	} else {
		records, err = ledger.All(c.Request.Context())
	}
	if err != nil {
		fail(c, err)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch c.DefaultQuery("format", "xlsx") {
	case "xlsx":
		err = attendance.WriteXLSX(&buf, records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		name += ".xlsx"
	case "csv":
		err = attendance.WriteCSV(&buf, records)
		contentType = "text/csv"
		name += ".csv"
	default:
		badRequest(c, "format must be xlsx or csv")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *Handler) events(c *gin.Context) {
	if h.Audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit_unavailable", "message": "audit log not configured"})
		return
	}
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	events, err := h.Audit.ListEvents(c.Request.Context(), c.Query("staff_id"), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
