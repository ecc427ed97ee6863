package middleware

import (
	"context"
	"net/http"
	"time"

	"contact-form-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookieName identifies the browser's form session
	SessionCookieName = "contact_session"
	// SessionContextKey holds the session id in the gin context
	SessionContextKey = "SessionID"
)

// Session makes sure every request carries a session id. Unknown or
// malformed cookies are replaced by a fresh uuid.
func Session(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.NewString()
		}

		// Refresh the cookie so it expires together with the stored state
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, id, int(ttl.Seconds()), "/", "", secure, true)

		c.Set(SessionContextKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), domain.KeySessionID, id))
		c.Next()
	}
}

// SessionID returns the id assigned by Session.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionContextKey)
}
