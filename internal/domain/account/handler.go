package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caredesk/caredesk/internal/platform/session"
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
}

func NewHandler(svc *Service, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// RegisterRoutes mounts the auth endpoints. The credential-accepting routes
// take an extra rate limiting middleware to slow password guessing.
func (h *Handler) RegisterRoutes(g *echo.Group, limitAuth echo.MiddlewareFunc) {
	g.POST("/login/", h.Login, limitAuth)
	g.POST("/logout/", h.Logout)
	g.POST("/register/", h.Register, limitAuth)
	g.GET("/profile/", h.Profile, session.RequireAuth())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "Invalid username or password",
		})
	}

	cookie, err := h.sessions.Issue(c.Request().Context(), a.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to establish session")
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"user":     a.Public(),
		"redirect": DashboardRoute(a.Role),
	})
}

func (h *Handler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Revoke(c.Request().Context(), cookie.Value); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to end session")
		}
	}
	c.SetCookie(h.sessions.ClearCookie())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.Register(c.Request().Context(), &in)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "Username already exists",
			})
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    a.Public(),
	})
}

func (h *Handler) Profile(c echo.Context) error {
	id, ok := session.AccountIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	a, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    a.Public(),
	})
}
