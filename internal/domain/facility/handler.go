package facility

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/auth"
)

type Handler struct {
	svc      *Service
	profiles *profile.Service
}

func NewHandler(svc *Service, profiles *profile.Service) *Handler {
	return &Handler{svc: svc, profiles: profiles}
}

func (h *Handler) RegisterRoutes(api *echo.Group, requireMoH echo.MiddlewareFunc) {
	api.GET("/facilities", h.ListFacilities)
	api.GET("/facilities/:id", h.GetFacility)
	api.PATCH("/facilities/:id/status", h.UpdateStatus, requireMoH)
}

// ListFacilities scopes results by the caller's role rather than trusting
// query parameters.
func (h *Handler) ListFacilities(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	prof, err := h.profiles.GetProfile(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return c.JSON(http.StatusOK, []*Facility{})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}

	list, err := h.svc.ListForViewer(ctx, prof.Role, prof.FacilityID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list facilities")
	}
	if list == nil {
		list = []*Facility{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetFacility(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid facility id")
	}

	f, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "facility not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load facility")
	}
	return c.JSON(http.StatusOK, f)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid facility id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	f, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "facility not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, f)
}
