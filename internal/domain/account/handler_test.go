package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caredesk/caredesk/internal/platform/session"
)

type memSessions struct {
	data map[uuid.UUID]*session.Session
}

func (m *memSessions) Create(_ context.Context, s *session.Session) error {
	m.data[s.ID] = s
	return nil
}

func (m *memSessions) Get(_ context.Context, id uuid.UUID) (*session.Session, error) {
	if s, ok := m.data[id]; ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

func (m *memSessions) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func newTestHandler() (*Handler, *echo.Echo, *memSessions) {
	svc, _ := newTestService()
	store := &memSessions{data: make(map[uuid.UUID]*session.Session)}
	mgr := session.NewManager(store, []byte("test-secret-test-secret-test-secret"), time.Hour, false)
	return NewHandler(svc, mgr), echo.New(), store
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// ── Register ──

func TestHandler_Register(t *testing.T) {
	h, e, _ := newTestHandler()

	c, rec := postJSON(e, "/register/", `{"username":"drsmith","email":"s@example.com","password":"correct-horse","role":"doctor"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool       `json:"success"`
		User    PublicUser `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.User.Username != "drsmith" || resp.User.Role != "doctor" {
		t.Errorf("user projection = %+v", resp.User)
	}
}

func TestHandler_Register_Duplicate(t *testing.T) {
	h, e, _ := newTestHandler()

	c, _ := postJSON(e, "/register/", `{"username":"drsmith","password":"correct-horse"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("first register: %v", err)
	}

	c, rec := postJSON(e, "/register/", `{"username":"drsmith","password":"other-password"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("second register: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success || resp.Error == "" {
		t.Errorf("expected failure envelope, got %s", rec.Body.String())
	}
}

// ── Login / Logout ──

func registerUser(t *testing.T, h *Handler, e *echo.Echo, username, password, role string) {
	t.Helper()
	c, rec := postJSON(e, "/register/",
		`{"username":"`+username+`","password":"`+password+`","role":"`+role+`"}`)
	if err := h.Register(c); err != nil || rec.Code != http.StatusCreated {
		t.Fatalf("register %s: err=%v code=%d", username, err, rec.Code)
	}
}

func TestHandler_Login(t *testing.T) {
	h, e, _ := newTestHandler()
	registerUser(t, h, e, "drsmith", "correct-horse", "doctor")

	c, rec := postJSON(e, "/login/", `{"username":"drsmith","password":"correct-horse"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success  bool       `json:"success"`
		User     PublicUser `json:"user"`
		Redirect string     `json:"redirect"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Redirect != "/dashboard/doctor/" {
		t.Errorf("redirect = %q", resp.Redirect)
	}
	if strings.Contains(strings.ToLower(rec.Body.String()), "password") {
		t.Errorf("login response leaks password material: %s", rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	var found bool
	for _, ck := range cookies {
		if ck.Name == session.CookieName && ck.Value != "" {
			found = true
			if !ck.HttpOnly {
				t.Error("session cookie must be HttpOnly")
			}
		}
	}
	if !found {
		t.Error("expected session cookie to be set")
	}
}

func TestHandler_Login_FailureShapesMatch(t *testing.T) {
	h, e, _ := newTestHandler()
	registerUser(t, h, e, "drsmith", "correct-horse", "doctor")

	c, wrongPw := postJSON(e, "/login/", `{"username":"drsmith","password":"wrong"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	c, noUser := postJSON(e, "/login/", `{"username":"nobody","password":"wrong"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}

	if wrongPw.Code != http.StatusUnauthorized || noUser.Code != http.StatusUnauthorized {
		t.Errorf("expected 401s, got %d and %d", wrongPw.Code, noUser.Code)
	}
	if wrongPw.Body.String() != noUser.Body.String() {
		t.Errorf("failure bodies differ:\n%s\n%s", wrongPw.Body.String(), noUser.Body.String())
	}
}

func TestHandler_Logout(t *testing.T) {
	h, e, store := newTestHandler()
	registerUser(t, h, e, "drsmith", "correct-horse", "doctor")

	c, rec := postJSON(e, "/login/", `{"username":"drsmith","password":"correct-horse"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	var loginCookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			loginCookie = ck
		}
	}
	if loginCookie == nil {
		t.Fatal("no session cookie from login")
	}
	if len(store.data) != 1 {
		t.Fatalf("expected 1 session, got %d", len(store.data))
	}

	req := httptest.NewRequest(http.MethodPost, "/logout/", nil)
	req.AddCookie(loginCookie)
	rec = httptest.NewRecorder()
	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.data) != 0 {
		t.Error("logout should delete the session row")
	}

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName && ck.MaxAge >= 0 {
			t.Error("logout should clear the session cookie")
		}
	}
}

// ── Profile ──

func TestHandler_Profile_Unauthenticated(t *testing.T) {
	h, e, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/profile/", nil)
	rec := httptest.NewRecorder()

	err := h.Profile(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 HTTPError, got %v", err)
	}
}

func TestHandler_Profile(t *testing.T) {
	h, e, _ := newTestHandler()

	a, err := h.svc.Register(context.Background(), &RegisterInput{
		Username: "nurse1", Password: "correct-horse", Role: "nurse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/profile/", nil)
	req = req.WithContext(context.WithValue(req.Context(), session.AccountIDKey, a.ID))
	rec := httptest.NewRecorder()

	if err := h.Profile(e.NewContext(req, rec)); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool       `json:"success"`
		User    PublicUser `json:"user"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.User.Username != "nurse1" {
		t.Errorf("profile = %s", rec.Body.String())
	}
}
