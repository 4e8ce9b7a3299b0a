package session

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const AccountIDKey contextKey = "account_id"

// Middleware resolves the session cookie, when present, and stores the
// authenticated account ID on the request context. Requests without a valid
// session pass through anonymously; RequireAuth gates the endpoints that
// need a principal.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			s, err := m.Resolve(c.Request().Context(), cookie.Value)
			if err != nil {
				// Stale or forged cookie: continue anonymously.
				return next(c)
			}

			ctx := context.WithValue(c.Request().Context(), AccountIDKey, s.AccountID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireAuth rejects requests that carry no authenticated session.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := AccountIDFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// AccountIDFromContext retrieves the authenticated account ID.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return id, ok
}
