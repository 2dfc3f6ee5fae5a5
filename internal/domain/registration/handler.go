package registration

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/auth"
	"github.com/hkit/portal/internal/platform/password"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the registration endpoints. Submissions are public;
// listing and approval are overseer operations. Rejection deliberately sits
// behind authentication only, mirroring the weaker check the original
// rejection path shipped with.
func (h *Handler) RegisterRoutes(public, authed *echo.Group, requireMoH echo.MiddlewareFunc) {
	public.POST("/registrations/facility", h.SubmitFacility)
	public.POST("/registrations/developer", h.SubmitDeveloper)

	authed.GET("/registrations", h.ListRequests, requireMoH)
	authed.POST("/registrations/:id/reject", h.RejectRequest)
	authed.POST("/functions/approve-request", h.ApproveRequest, requireMoH)
}

func (h *Handler) SubmitFacility(c echo.Context) error {
	return h.submit(c, TypeFacility)
}

func (h *Handler) SubmitDeveloper(c echo.Context) error {
	return h.submit(c, TypeDeveloper)
}

func (h *Handler) submit(c echo.Context, reqType string) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req, err := h.svc.Submit(c.Request().Context(), reqType, payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if list == nil {
		list = []*Request{}
	}
	return c.JSON(http.StatusOK, list)
}

// approveRequestBody is the wire contract of the approve-request function.
type approveRequestBody struct {
	RequestID   string                 `json:"requestId"`
	RequestType string                 `json:"requestType"`
	RequestData map[string]interface{} `json:"requestData"`
	Email       string                 `json:"email"`
	Password    string                 `json:"password"`
	Name        string                 `json:"name"`
	Role        string                 `json:"role"`
	MoHUserID   string                 `json:"mohUserId"`
}

type approveRequestResponse struct {
	Success    bool   `json:"success"`
	UserID     string `json:"userId"`
	FacilityID string `json:"facilityId,omitempty"`
}

func (h *Handler) ApproveRequest(c echo.Context) error {
	var body approveRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	requestID, err := uuid.Parse(body.RequestID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid requestId")
	}
	role, err := profile.ParseRole(body.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// The approver on record is the authenticated caller, regardless of
	// what the body claims.
	approverID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	// Clients normally generate the temporary credential; generate one
	// server-side when it is missing.
	pw := body.Password
	if pw == "" {
		pw, err = password.Generate(password.DefaultLength)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate password")
		}
	}

	res, err := h.svc.Approve(c.Request().Context(), ApproveParams{
		RequestID:  requestID,
		Email:      body.Email,
		Password:   pw,
		Name:       body.Name,
		Role:       role,
		ApproverID: approverID,
	})

	var partial *PartialError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "registration request not found")
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, "registration request already resolved")
	case errors.As(err, &partial):
		return echo.NewHTTPError(http.StatusInternalServerError, partial.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp := approveRequestResponse{Success: true, UserID: res.UserID.String()}
	if res.FacilityID != nil {
		resp.FacilityID = res.FacilityID.String()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RejectRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	approverID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	err = h.svc.Reject(c.Request().Context(), id, approverID)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "registration request not found")
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, "registration request already resolved")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reject request")
	}
	return c.NoContent(http.StatusNoContent)
}
