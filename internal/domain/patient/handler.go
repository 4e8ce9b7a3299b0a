package patient

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients/", h.List)
	g.POST("/patients/", h.Create)
	g.GET("/patients/:patient_id/", h.Get)
	g.PUT("/patients/:patient_id/", h.Update)
	g.PATCH("/patients/:patient_id/", h.Update)
	g.DELETE("/patients/:patient_id/", h.Delete)
	g.GET("/stats/", h.Stats)
}

func (h *Handler) List(c echo.Context) error {
	patients, err := h.svc.List(c.Request().Context(), c.QueryParam("search"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Summaries(patients, time.Now()))
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.Create(c.Request().Context(), &in)
	if err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "Registration failed",
				"errors":  verrs,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Patient registered successfully",
		"data":    p.ToDetail(time.Now()),
	})
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("patient_id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p.ToDetail(time.Now()))
}

func (h *Handler) Update(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.Update(c.Request().Context(), c.Param("patient_id"), &in)
	if err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "Update failed",
				"errors":  verrs,
			})
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, p.ToDetail(time.Now()))
}

func (h *Handler) Delete(c echo.Context) error {
	err := h.svc.Delete(c.Request().Context(), c.Param("patient_id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
