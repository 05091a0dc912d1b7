package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/metrics"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// partialDeletePrefix leads the error body when the user row is gone but the
// peer kept its data.
const partialDeletePrefix = "Failed to delete associated properties: "

// IdentityHandler exposes registration, login and profile management.
// Errors are returned to the central HTTP error handler.
type IdentityHandler struct {
	service ports.IdentityService
}

func NewIdentityHandler(service ports.IdentityService) *IdentityHandler {
	return &IdentityHandler{service: service}
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  profileResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/register [post]
func (h *IdentityHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return domain.NewInputError(err.Error())
	}

	profile, err := h.service.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationResult(err)).Inc()
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, profile)
}

// Login checks a username or email against the stored password hash.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/login [post]
func (h *IdentityHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		metrics.AuthenticationsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	res, err := h.service.Authenticate(c.Request().Context(), req.identifier(), req.Password)
	if err != nil {
		metrics.AuthenticationsTotal.WithLabelValues(authenticationResult(err)).Inc()
		return err
	}

	metrics.AuthenticationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, authResponse{
		Message:  "Login successful",
		UserID:   res.UserID,
		Username: res.Username,
		Email:    res.Email,
		Role:     res.Role,
	})
}

// List returns every profile.
//
// @Summary      List profiles
// @Tags         profiles
// @Produce      json
// @Success      200  {array}   profileResponse
// @Failure      500  {object}  errorResponse
// @Router       /profiles [get]
func (h *IdentityHandler) List(c echo.Context) error {
	profiles, err := h.service.ListProfiles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profiles)
}

// Get returns a single profile.
//
// @Summary      Get a profile
// @Tags         profiles
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  profileResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /profiles/{id} [get]
func (h *IdentityHandler) Get(c echo.Context) error {
	profile, err := h.service.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Update replaces username, email and role of a profile.
//
// @Summary      Update a profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "User id"
// @Param        body  body      updateProfileRequest  true  "New profile fields"
// @Success      200   {object}  profileResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /profiles/{id} [put]
func (h *IdentityHandler) Update(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewInputError(err.Error())
	}

	profile, err := h.service.UpdateProfile(c.Request().Context(), ports.UpdateProfileInput{
		ID:       c.Param("id"),
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Delete removes a profile and asks the peer service to drop the user's data.
// The user stays deleted when the peer fails; that case answers 500 with the
// peer's detail.
//
// @Summary      Delete a profile
// @Tags         profiles
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /profiles/{id} [delete]
func (h *IdentityHandler) Delete(c echo.Context) error {
	res, err := h.service.DeleteProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	metrics.ProfileDeletionsTotal.WithLabelValues(string(res.Outcome)).Inc()
	if res.Outcome == ports.DeletePartial {
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error: partialDeletePrefix + domain.PeerDetail(res.PeerErr),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserExists):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func authenticationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
