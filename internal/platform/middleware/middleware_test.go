package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/caredesk/caredesk/internal/platform/session"
)

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// ── RequestID ──

func TestRequestID_Generates(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", okHandler)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected generated request ID header")
	}
}

func TestRequestID_PreservesClientID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec := serve(e, req)
	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("request ID = %q, want client-supplied-id", got)
	}
}

// ── Logger ──

func TestLogger_FieldsAndPrincipal(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	accountID := uuid.New()

	e := echo.New()
	e.Use(RequestID())
	e.Use(Logger(logger))
	// Stand-in for the session middleware, which attaches the principal
	// inside the logger's next chain.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), session.AccountIDKey, accountID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	e.GET("/patients/", okHandler)

	serve(e, httptest.NewRequest(http.MethodGet, "/patients/", nil))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if line["method"] != "GET" || line["path"] != "/patients/" {
		t.Errorf("routing fields = %v %v", line["method"], line["path"])
	}
	if line["request_id"] == "" || line["request_id"] == nil {
		t.Error("expected request_id in log line")
	}
	if line["account_id"] != accountID.String() {
		t.Errorf("account_id = %v, want %s", line["account_id"], accountID)
	}
}

func TestLogger_AnonymousRequestHasNoPrincipal(t *testing.T) {
	var buf bytes.Buffer

	e := echo.New()
	e.Use(RequestID())
	e.Use(Logger(zerolog.New(&buf)))
	e.GET("/", okHandler)

	serve(e, httptest.NewRequest(http.MethodGet, "/", nil))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := line["account_id"]; ok {
		t.Error("anonymous request should log no account_id")
	}
}

// ── Recovery ──

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer

	e := echo.New()
	e.Use(Recovery(zerolog.New(&buf)))
	e.Use(RequestID())
	e.GET("/boom", func(c echo.Context) error {
		panic("handler exploded")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp["message"] != "Internal server error" {
		t.Errorf("message = %v", resp["message"])
	}
	if resp["request_id"] != rec.Header().Get(RequestIDHeader) {
		t.Errorf("request_id = %v, header = %q", resp["request_id"], rec.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), "handler exploded") {
		t.Error("panic value should be logged")
	}
	if strings.Contains(rec.Body.String(), "handler exploded") {
		t.Error("panic detail must not leak into the response")
	}
}

// ── SecurityHeaders ──

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/", okHandler)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("CSP = %q", csp)
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	e := echo.New()
	e.Use(BodyLimit("1K"))
	e.POST("/", func(c echo.Context) error {
		var buf [2048]byte
		for {
			if _, err := c.Request().Body.Read(buf[:]); err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					return he
				}
				break
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	small := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 512)))
	if rec := serve(e, small); rec.Code != http.StatusOK {
		t.Errorf("small body: code = %d", rec.Code)
	}

	big := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 4096)))
	if rec := serve(e, big); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("big body: code = %d, want 413", rec.Code)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"1K", 1 << 10},
		{"2M", 2 << 20},
		{"1G", 1 << 30},
		{"", 1 << 20},
		{"garbage", 1 << 20},
		{"-5", 1 << 20},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// ── RateLimit ──

func TestRateLimit_BurstThenRejects(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 3}))
	e.POST("/login/", okHandler)

	for i := 0; i < 3; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/login/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: code = %d", i, rec.Code)
		}
	}

	rec := serve(e, httptest.NewRequest(http.MethodPost, "/login/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestRateLimit_KeyedByClientIP(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1}))
	e.POST("/login/", okHandler)

	first := httptest.NewRequest(http.MethodPost, "/login/", nil)
	first.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	if rec := serve(e, first); rec.Code != http.StatusOK {
		t.Fatalf("first client: code = %d", rec.Code)
	}
	exhausted := httptest.NewRequest(http.MethodPost, "/login/", nil)
	exhausted.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	if rec := serve(e, exhausted); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted client: code = %d, want 429", rec.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/login/", nil)
	other.Header.Set(echo.HeaderXRealIP, "10.0.0.2")
	if rec := serve(e, other); rec.Code != http.StatusOK {
		t.Errorf("other client should have its own bucket, code = %d", rec.Code)
	}
}
