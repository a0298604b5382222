package patient

import (
	"errors"
	"net/http"

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
	g := api.Group("/patients")
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
	var in Input
	if err := validation.Bind(c, &in); err != nil {
		return mapError(err)
	}
	p, err := h.svc.Create(c.Request().Context(), doctorID, &in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), doctorID, c.QueryParam("search"), p)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, p))
}

func (h *Handler) Get(c echo.Context) error {
	doctorID, id, err := scope(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), doctorID, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	doctorID, id, err := scope(c)
	if err != nil {
		return err
	}
	var in Input
	if err := validation.Bind(c, &in); err != nil {
		return mapError(err)
	}
	p, err := h.svc.Update(c.Request().Context(), doctorID, id, &in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	doctorID, id, err := scope(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), doctorID, id); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "patient deleted successfully"})
}

// scope returns the caller's doctor id and the :id path parameter. An id
// that does not parse cannot name any patient, so it reads as not found.
func scope(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, ErrPatientNotFound.Error())
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
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicatePhone):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
