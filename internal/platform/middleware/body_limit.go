package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit returns middleware that caps the request body size. Patient and
// account payloads are small JSON documents, so anything past the limit is
// rejected with 413 before it reaches a handler.
//
// The limit is a human-readable string: "256K", "1M", "1G", or a bare byte
// count.
func BodyLimit(limit string) echo.MiddlewareFunc {
	maxBytes := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			// Fast path: trust a declared Content-Length.
			if req.ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %s limit", limit))
			}

			// Chunked or lying clients get cut off at the limit while reading.
			req.Body = &limitedReader{r: req.Body, remaining: maxBytes}
			return next(c)
		}
	}
}

type limitedReader struct {
	r         io.ReadCloser
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, echo.ErrStatusRequestEntityTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, echo.ErrStatusRequestEntityTooLarge
	}
	return n, err
}

func (l *limitedReader) Close() error {
	return l.r.Close()
}

func parseLimit(limit string) int64 {
	limit = strings.TrimSpace(strings.ToUpper(limit))
	if limit == "" {
		return 1 << 20
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(limit, "K"):
		multiplier = 1 << 10
		limit = strings.TrimSuffix(limit, "K")
	case strings.HasSuffix(limit, "M"):
		multiplier = 1 << 20
		limit = strings.TrimSuffix(limit, "M")
	case strings.HasSuffix(limit, "G"):
		multiplier = 1 << 30
		limit = strings.TrimSuffix(limit, "G")
	}

	n, err := strconv.ParseInt(limit, 10, 64)
	if err != nil || n <= 0 {
		return 1 << 20
	}
	return n * multiplier
}
