package appointment

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
	"github.com/clinicrx/clinicrx/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := validation.Bind(c, &in); err != nil {
		return mapError(err)
	}
	a, err := h.svc.Create(c.Request().Context(), doctorID, &in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

// listParams reads the search, status and date filters from the query string.
func listParams(c echo.Context) (ListParams, error) {
	params := ListParams{
		Search: c.QueryParam("search"),
		Status: strings.TrimSpace(c.QueryParam("status")),
		Date:   strings.TrimSpace(c.QueryParam("date")),
	}
	if params.Status != "" && !ValidStatus(params.Status) {
		return params, echo.NewHTTPError(http.StatusBadRequest, "status must be one of: scheduled, completed, cancelled")
	}
	if params.Date != "" {
		if _, err := time.Parse(DateLayout, params.Date); err != nil {
			return params, echo.NewHTTPError(http.StatusBadRequest, "date must match the format "+DateLayout)
		}
	}
	return params, nil
}

func (h *Handler) List(c echo.Context) error {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return err
	}
	params, err := listParams(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	out, total, err := h.svc.List(c.Request().Context(), doctorID, params, p)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, p))
}

func (h *Handler) Get(c echo.Context) error {
	doctorID, id, err := scope(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), doctorID, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	doctorID, id, err := scope(c)
	if err != nil {
		return err
	}
	var patch Patch
	if err := validation.Bind(c, &patch); err != nil {
		return mapError(err)
	}
	a, err := h.svc.Update(c.Request().Context(), doctorID, id, &patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	doctorID, id, err := scope(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), doctorID, id); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "appointment deleted successfully"})
}

func scope(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, ErrAppointmentNotFound.Error())
	}
	return doctorID, id, nil
}

func mapError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if ve, ok := validation.As(err); ok {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	}
	if errors.Is(err, ErrAppointmentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}
