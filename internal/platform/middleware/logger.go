package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/caredesk/caredesk/internal/platform/session"
)

// Logger returns middleware that writes one structured line per request.
// Patient data never goes in the log; the line carries routing metadata, the
// request ID, and the resolved account when a session was presented.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			evt = evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())

			// The session middleware runs inside this one, so the principal
			// is only on the request context after next returns.
			if accountID, ok := session.AccountIDFromContext(c.Request().Context()); ok {
				evt = evt.Str("account_id", accountID.String())
			}

			evt.Msg("request")
			return err
		}
	}
}
