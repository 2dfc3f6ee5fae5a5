package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hkit/portal/internal/domain/profile"
	"github.com/hkit/portal/internal/platform/auth"
)

// LandingPath maps a resolved role to the path the client should land on.
// Injected by the server wiring so this package stays free of routing
// policy.
type LandingPath func(role profile.Role) string

type Handler struct {
	svc      *Service
	resolver *profile.Resolver
	landing  LandingPath
}

func NewHandler(svc *Service, resolver *profile.Resolver, landing LandingPath) *Handler {
	return &Handler{svc: svc, resolver: resolver, landing: landing}
}

// RegisterRoutes wires the auth endpoints. Login and signup are public;
// logout and session introspection require a valid token.
func (h *Handler) RegisterRoutes(public, authed *echo.Group) {
	public.POST("/auth/login", h.Login)
	public.POST("/auth/signup-moh", h.SignUpMoH)
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/session", h.Session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	User        *User            `json:"user"`
	Profile     *profile.Profile `json:"profile"`
	Redirect    string           `json:"redirect"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	res, err := h.svc.SignIn(ctx, req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	// The profile row may still be landing for a freshly approved account.
	// Resolve degrades to an unset role rather than failing the login.
	prof, err := h.resolver.Resolve(ctx, res.User.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}

	return c.JSON(http.StatusOK, loginResponse{
		AccessToken: res.Token,
		TokenType:   "Bearer",
		User:        res.User,
		Profile:     prof,
		Redirect:    h.landing(prof.Role),
	})
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID, err := uuid.Parse(auth.SessionIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if err := h.svc.SignOut(ctx, sessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type sessionResponse struct {
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	Profile   *profile.Profile `json:"profile"`
	Redirect  string           `json:"redirect"`
}

func (h *Handler) Session(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	prof, err := h.resolver.Resolve(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}

	return c.JSON(http.StatusOK, sessionResponse{
		UserID:    userID.String(),
		SessionID: auth.SessionIDFromContext(ctx),
		Profile:   prof,
		Redirect:  h.landing(prof.Role),
	})
}

type signUpRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (h *Handler) SignUpMoH(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.svc.SignUpMoH(c.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if errors.Is(err, ErrEmailTaken) {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}
