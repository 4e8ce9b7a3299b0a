package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the name of the session cookie issued on login.
const CookieName = "caredesk_session"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrNotFound     = errors.New("session not found")
	ErrExpired      = errors.New("session expired")
)

// Session is one server-side login session. The cookie carries a signed
// token referencing the row; deleting the row revokes the session even if
// the cookie is still in the wild.
type Session struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Manager issues and resolves session cookies. The cookie value is an HS256
// JWT carrying the session row ID; the signature prevents forgery and the
// row is the revocation source of truth.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	secure bool
}

func NewManager(store Store, secret []byte, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, secret: secret, ttl: ttl, secure: secure}
}

// Issue creates a session for the account and returns the cookie to set.
func (m *Manager) Issue(ctx context.Context, accountID uuid.UUID) (*http.Cookie, error) {
	now := time.Now()
	s := &Session{
		ID:        uuid.New(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		SessionID: s.ID.String(),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return m.cookie(signed, s.ExpiresAt), nil
}

// Resolve validates a cookie value and loads the backing session. Any
// failure (bad signature, unknown row, expiry) maps to ErrInvalidToken or
// ErrExpired so callers can answer with a single generic 401.
func (m *Manager) Resolve(ctx context.Context, tokenStr string) (*Session, error) {
	sid, err := m.parseSessionID(tokenStr)
	if err != nil {
		return nil, err
	}

	s, err := m.store.Get(ctx, sid)
	if err != nil {
		return nil, ErrNotFound
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, ErrExpired
	}
	return s, nil
}

// Revoke deletes the session referenced by the cookie value. An unparseable
// token is not an error: logout is idempotent.
func (m *Manager) Revoke(ctx context.Context, tokenStr string) error {
	sid, err := m.parseSessionID(tokenStr)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, sid)
}

// Sweep removes expired session rows and returns the count deleted.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx)
}

// ClearCookie returns an expired cookie that removes the session cookie
// from the client.
func (m *Manager) ClearCookie() *http.Cookie {
	c := m.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func (m *Manager) parseSessionID(tokenStr string) (uuid.UUID, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(tokenStr, &cl, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrExpired
		}
		return uuid.Nil, ErrInvalidToken
	}

	sid, err := uuid.Parse(cl.SessionID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return sid, nil
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
