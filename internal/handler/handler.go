// Package handler exposes the attendance service over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staffattend/internal/attendance"
	"staffattend/internal/auth"
	"staffattend/internal/dailytoken"
	"staffattend/internal/directory"
	"staffattend/internal/session"
	"staffattend/internal/settings"
)

// maxCaptureBytes bounds an uploaded scan image.
const maxCaptureBytes = 10 << 20

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Gate       *session.Gate
	Directory  *directory.Directory
	Settings   *settings.Store
	Tokens     *dailytoken.Generator
	Attendance *attendance.Service
	// Audit is optional; without it /v1/admin/events answers 503.
	Audit *attendance.Repository

	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration

	// LoginLimit, when set, guards POST /v1/login.
	LoginLimit gin.HandlerFunc
	Health     map[string]HealthCheck
}

// Handler serves the HTTP API.
type Handler struct {
	Deps
}

// New creates a handler.
func New(d Deps) *Handler {
	if d.AccessTTL <= 0 {
		d.AccessTTL = 12 * time.Hour
	}
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	login := []gin.HandlerFunc{h.login}
	if h.LoginLimit != nil {
		login = append([]gin.HandlerFunc{h.LoginLimit}, login...)
	}
	v1.POST("/login", login...)

	authed := v1.Group("", auth.RequireSession(h.Gate, h.JWTSigningKey, h.JWTIssuer))
	authed.POST("/logout", h.logout)
	authed.GET("/me", h.me)

	admin := authed.Group("/admin", auth.RequireRole(directory.RoleAdmin))
	admin.GET("/config", h.getConfig)
	admin.PUT("/config", h.putConfig)
	admin.PUT("/config/cutoff", h.putCutoff)
	admin.PUT("/config/geofence", h.putGeofence)
	admin.GET("/users", h.listUsers)
	admin.POST("/users", h.addUser)
	admin.PUT("/users/:username/password", h.changePassword)
	admin.DELETE("/users/:username", h.removeUser)
	admin.GET("/token", h.token)
	admin.GET("/token.png", h.tokenPNG)
	admin.GET("/attendance", h.attendanceByDate)
	admin.GET("/attendance/export", h.exportAttendance)
	admin.GET("/events", h.events)

	staff := authed.Group("/staff", auth.RequireRole(directory.RoleStaff))
	staff.POST("/distance", h.distance)
	staff.POST("/scan", h.scan)
	staff.GET("/attendance", h.myAttendance)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
