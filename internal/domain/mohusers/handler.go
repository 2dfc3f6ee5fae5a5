package mohusers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hkit/portal/internal/domain/profile"
)

// Actions accepted by the manage-moh-users function endpoint.
const (
	ActionGetUsers   = "GET_USERS"
	ActionCreateUser = "CREATE_USER"
	ActionUpdateUser = "UPDATE_USER"
	ActionDeleteUser = "DELETE_USER"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the function endpoint. The requireMoH middleware is
// the server-side role check: being authenticated is not enough.
func (h *Handler) RegisterRoutes(authed *echo.Group, requireMoH echo.MiddlewareFunc) {
	authed.POST("/functions/manage-moh-users", h.Manage, requireMoH)
}

type manageRequest struct {
	Action  string        `json:"action"`
	Payload managePayload `json:"payload"`
}

type managePayload struct {
	UserID    string  `json:"userId"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
}

func (h *Handler) Manage(c echo.Context) error {
	var req manageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	switch req.Action {
	case ActionGetUsers:
		users, err := h.svc.ListUsers(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list users")
		}
		if users == nil {
			users = []*profile.Profile{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "users": users})

	case ActionCreateUser:
		params, err := createParamsFrom(req.Payload)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		res, err := h.svc.CreateUser(ctx, params)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":           true,
			"user":              res.User,
			"temporaryPassword": res.TemporaryPassword,
		})

	case ActionUpdateUser:
		userID, err := uuid.Parse(req.Payload.UserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid userId")
		}
		params, err := updateParamsFrom(req.Payload)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		prof, err := h.svc.UpdateUser(ctx, userID, params)
		if errors.Is(err, profile.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "user": prof})

	case ActionDeleteUser:
		userID, err := uuid.Parse(req.Payload.UserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid userId")
		}
		err = h.svc.DeleteUser(ctx, userID)
		if errors.Is(err, profile.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true})

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

func createParamsFrom(p managePayload) (CreateUserParams, error) {
	params := CreateUserParams{
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
	if p.Email == nil || *p.Email == "" {
		return params, errors.New("email is required")
	}
	params.Email = *p.Email
	if p.Password != nil {
		params.Password = *p.Password
	}
	if p.Role == nil {
		return params, errors.New("role is required")
	}
	role, err := profile.ParseRole(*p.Role)
	if err != nil {
		return params, err
	}
	params.Role = role
	return params, nil
}

func updateParamsFrom(p managePayload) (UpdateUserParams, error) {
	params := UpdateUserParams{
		Email:     p.Email,
		Password:  p.Password,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
	if p.Role != nil {
		role, err := profile.ParseRole(*p.Role)
		if err != nil {
			return params, err
		}
		params.Role = &role
	}
	return params, nil
}
