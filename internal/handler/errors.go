package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"staffattend/internal/attendance"
	"staffattend/internal/dailytoken"
	"staffattend/internal/directory"
	"staffattend/internal/session"
	"staffattend/internal/settings"
	"staffattend/internal/table"
)

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{session.ErrUnknownSession, http.StatusUnauthorized, "unauthorized"},
	{directory.ErrDuplicateUsername, http.StatusConflict, "duplicate_username"},
	{directory.ErrNotFound, http.StatusNotFound, "not_found"},
	{directory.ErrInvalidAccount, http.StatusBadRequest, "invalid_request"},
	{settings.ErrInvalidClock, http.StatusBadRequest, "invalid_request"},
	{settings.ErrInvalidRadius, http.StatusBadRequest, "invalid_request"},
	{dailytoken.ErrUnreadable, http.StatusUnprocessableEntity, "token_unreadable"},
	{dailytoken.ErrInvalid, http.StatusUnprocessableEntity, "token_invalid"},
	{attendance.ErrOutOfGeofence, http.StatusForbidden, "out_of_geofence"},
	{attendance.ErrAlreadyCheckedIn, http.StatusConflict, "already_checked_in"},
	{attendance.ErrNotCheckedIn, http.StatusConflict, "not_checked_in"},
	{attendance.ErrAlreadyCheckedOut, http.StatusConflict, "already_checked_out"},
	{table.ErrUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

// classify maps err onto a status and a stable error code.
func classify(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func fail(c *gin.Context, err error, extra ...gin.H) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	body := gin.H{"error": code, "message": msg}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": msg})
}
