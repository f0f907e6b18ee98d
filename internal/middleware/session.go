package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
)

const (
	// SessionCookieName carries the opaque session id across requests
	SessionCookieName = "nkp_session"

	// sessionContextKey is where the session id lives in the gin context
	sessionContextKey = "session_id"

	// sessionMaxAge keeps the cookie alive for a day of browsing
	sessionMaxAge = 24 * 60 * 60
)

// Session assigns an opaque session id on first contact and threads it
// through the request context. Seat holds and checkouts are scoped to this
// id; there is no customer login in the booking flow.
func Session(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || sessionID == "" {
			sessionID = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookieName, sessionID, sessionMaxAge, "/", "", false, true)

			ua := user_agent.New(c.Request.UserAgent())
			browser, version := ua.Browser()
			logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"browser":    browser,
				"version":    version,
				"os":         ua.OS(),
				"mobile":     ua.Mobile(),
				"bot":        ua.Bot(),
			}).Debug("New visitor session")
		}

		c.Set(sessionContextKey, sessionID)
		c.Next()
	}
}

// GetSessionID returns the session id placed by the Session middleware
func GetSessionID(c *gin.Context) (string, bool) {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return "", false
	}
	sessionID, ok := value.(string)
	return sessionID, ok && sessionID != ""
}
