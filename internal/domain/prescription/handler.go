package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
	"github.com/clinicrx/clinicrx/pkg/pagination"
)

const (
	defaultSuggestionLimit = 20
	maxSuggestionLimit     = 100
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/prescriptions")
	g.GET("", h.List)
	g.POST("", h.Create)

	g.GET("/saved-diagnoses", h.suggestions(KindDiagnoses))
	g.GET("/saved-symptoms", h.suggestions(KindSymptoms))
	g.POST("/saved-symptoms", h.AddSavedSymptom)
	g.GET("/saved-tests", h.suggestions(KindTests))
	g.GET("/saved-medicines", h.suggestions(KindMedicines))

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
	var patientID *uuid.UUID
	if raw := c.QueryParam("patientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "patientId must be a valid id")
		}
		patientID = &id
	}
	p := pagination.FromContext(c)
	out, total, err := h.svc.List(c.Request().Context(), doctorID, c.QueryParam("search"), patientID, p)
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
	return c.JSON(http.StatusOK, map[string]string{"message": "prescription deleted successfully"})
}

func (h *Handler) suggestions(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		doctorID, err := auth.CurrentUserID(c)
		if err != nil {
			return err
		}
		limit := pagination.LimitFromContext(c, defaultSuggestionLimit, maxSuggestionLimit)
		out, err := h.svc.Suggestions(c.Request().Context(), doctorID, kind, limit)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *Handler) AddSavedSymptom(c echo.Context) error {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return err
	}
	var req SavedSymptomRequest
	if err := validation.Bind(c, &req); err != nil {
		return mapError(err)
	}
	s, err := h.svc.AddSavedSymptom(c.Request().Context(), doctorID, req.Symptom)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func scope(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	doctorID, err := auth.CurrentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, ErrPrescriptionNotFound.Error())
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
	case errors.Is(err, ErrPrescriptionNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownKind):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
