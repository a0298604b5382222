package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicrx/clinicrx/internal/platform/auth"
	"github.com/clinicrx/clinicrx/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")

	// Public
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/verify-email", h.VerifyEmail)
	g.POST("/verify-email", h.VerifyEmail)
	g.POST("/resend-verification", h.ResendVerification)

	// Authenticated
	g.GET("/me", h.Me)
	g.POST("/logout", h.Logout)
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := validation.Bind(c, &req); err != nil {
		return mapError(err)
	}
	u, err := h.svc.Register(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, userResponse{
		Message: "registration successful, please check your email to verify your account",
		User:    u,
	})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := validation.Bind(c, &req); err != nil {
		return mapError(err)
	}
	res, err := h.svc.Login(c.Request().Context(), &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// VerifyEmail accepts the token as a query parameter (the emailed link) or
// as a JSON body.
func (h *Handler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" && c.Request().Method == http.MethodPost {
		var req VerifyEmailRequest
		if err := validation.Bind(c, &req); err != nil {
			return mapError(err)
		}
		token = req.Token
	}
	u, err := h.svc.VerifyEmail(c.Request().Context(), token)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, userResponse{Message: "email verified successfully", User: u})
}

func (h *Handler) ResendVerification(c echo.Context) error {
	var req ResendVerificationRequest
	if err := validation.Bind(c, &req); err != nil {
		return mapError(err)
	}
	if err := h.svc.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "verification email sent"})
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.CurrentUserID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Logout(c echo.Context) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if err := h.svc.Logout(c.Request().Context(), claims); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
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
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrInvalidVerificationToken),
		errors.Is(err, ErrAlreadyVerified):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrEmailNotVerified):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}
