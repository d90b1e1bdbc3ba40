package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mealmitra/mealmitra-backend/internal/logctx"
	"github.com/mealmitra/mealmitra-backend/internal/service"
)

const (
	SessionHeader = "X-Session-Token"
	sessionKey    = "session"
)

// RequestID copies echo's request id into the request context so service
// logs carry it.
func RequestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if rid == "" {
			rid = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if rid != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(logctx.WithRID(req.Context(), rid)))
		}
		return next(c)
	}
}

type SessionMiddleware struct {
	sessions service.SessionService
}

func NewSessionMiddleware(sessions service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// RequireSession resolves the session token header and stores the session
// on the echo context. Behind RequireAuth the session must belong to the
// verified uid.
func (m *SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(SessionHeader)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthenticated", "missing session token"))
		}
		sess, err := m.sessions.Current(c.Request().Context(), token)
		if errors.Is(err, service.ErrUnauthenticated) {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthenticated", "unknown session"))
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, errorBody("internal_error", "failed to resolve session"))
		}
		if uid, _ := c.Get("uid").(string); uid != "" && uid != sess.Identity.UserID {
			return c.JSON(http.StatusForbidden, errorBody("forbidden", "session belongs to another user"))
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

// Session returns the session stored by RequireSession.
func Session(c echo.Context) (*service.Session, bool) {
	sess, ok := c.Get(sessionKey).(*service.Session)
	return sess, ok
}
