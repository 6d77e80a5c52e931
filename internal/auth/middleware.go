package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"staffattend/internal/directory"
	"staffattend/internal/session"
)

const (
	// ContextKey holds the resolved session.Session in the gin context.
	ContextKey = "session"
	// CookieKey is the cookie session field holding the session id.
	CookieKey = "sid"
)

// RequireSession resolves the caller's session from a bearer JWT or the
// cookie session and aborts with 401 when there is none.
func RequireSession(gate *session.Gate, signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := sessionID(c, signingKey, issuer)
		if err != nil || id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "login required"})
			return
		}
		sess, err := gate.Resolve(c.Request.Context(), id)
		if errors.Is(err, session.ErrUnknownSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": err.Error()})
			return
		}
		if err != nil {
			log.Printf("resolve session failed: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable", "message": "storage unavailable"})
			return
		}
		c.Set(ContextKey, sess)
		c.Next()
	}
}

// RequireRole lets only sessions with role through.
func RequireRole(role directory.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := Current(c)
		if !ok || sess.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not allowed for this role"})
			return
		}
		c.Next()
	}
}

// Current returns the session set by RequireSession.
func Current(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := v.(session.Session)
	return sess, ok
}

// SaveCookie stores the session id in the cookie session, if one is installed.
func SaveCookie(c *gin.Context, sess session.Session) error {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	s := sessions.Default(c)
	s.Set(CookieKey, sess.ID)
	return s.Save()
}

// ClearCookie drops the cookie session.
func ClearCookie(c *gin.Context) error {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return nil
	}
	s := sessions.Default(c)
	s.Clear()
	return s.Save()
}

func sessionID(c *gin.Context, signingKey, issuer string) (string, error) {
	authz := c.GetHeader("Authorization")
	if authz != "" {
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return "", errors.New("unsupported authorization scheme")
		}
		claims, err := Parse(strings.TrimSpace(authz[len("bearer "):]), signingKey, issuer)
		if err != nil {
			return "", err
		}
		return claims.ID, nil
	}
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return "", nil
	}
	id, _ := sessions.Default(c).Get(CookieKey).(string)
	return id, nil
}
