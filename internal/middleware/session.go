// Package middleware contains the Echo middleware used by the ticketing
// API: anonymous buyer sessions and distributed rate limiting.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	sessionCookieName = "ticketing_session"
	sessionContextKey = "session_id"

	// Cookie outlives any single hold so returning buyers keep their
	// session identity; the holds themselves expire server-side.
	sessionCookieMaxAge = 30 * 24 * 60 * 60 // 30 days in seconds
)

// Session ensures every request carries a buyer session ID. Buyers are
// anonymous: the session is an HTTP-only cookie holding a UUID, created on
// first contact. The ID is stashed in the request context for handlers and
// doubles as the reservation handle – a session's cart IS its reservation.
func Session() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID := ""
			if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     sessionCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   sessionCookieMaxAge,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(sessionContextKey, sessionID)
			return next(c)
		}
	}
}

// SessionID returns the buyer session ID set by Session, or "" when the
// middleware did not run.
func SessionID(c echo.Context) string {
	if v, ok := c.Get(sessionContextKey).(string); ok {
		return v
	}
	return ""
}
