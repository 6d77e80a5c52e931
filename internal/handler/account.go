package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"staffattend/internal/auth"
	"staffattend/internal/metrics"
	"staffattend/internal/session"
)

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "username and password required")
		return
	}
	sess, err := h.Gate.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("rejected").Inc()
		} else {
			metrics.Logins.WithLabelValues("error").Inc()
		}
		fail(c, err)
		return
	}
	metrics.Logins.WithLabelValues("ok").Inc()

	if err := auth.SaveCookie(c, sess); err != nil {
		fail(c, err)
		return
	}
	token, exp, err := auth.Issue(sess, h.JWTIssuer, h.JWTSigningKey, h.AccessTTL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_at":   exp.Unix(),
		"session":      sess,
	})
}

func (h *Handler) logout(c *gin.Context) {
	sess, _ := auth.Current(c)
	if err := h.Gate.Logout(c.Request.Context(), sess); err != nil {
		fail(c, err)
		return
	}
	if err := auth.ClearCookie(c); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	sess, _ := auth.Current(c)
	c.JSON(http.StatusOK, gin.H{"session": sess})
}
