package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionVerifier reports whether a session row is still live. Tokens for
// revoked or expired sessions are rejected even when the signature checks
// out.
type SessionVerifier interface {
	VerifySession(ctx context.Context, sessionID, userID string) error
}

// RoleResolver returns the current role of a user, read fresh from storage
// so approvals and revocations take effect without re-login. An empty role
// means the user has no role assigned.
type RoleResolver func(ctx context.Context, userID string) (string, error)

// Middleware validates the bearer token on each request and stores the
// user and session IDs in the request context.
func Middleware(issuer *TokenIssuer, verifier SessionVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := bearerToken(c.Request())
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := issuer.Parse(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			if err := verifier.VerifySession(ctx, claims.ID, claims.Subject); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "session revoked or expired")
			}

			c.SetRequest(c.Request().WithContext(WithUser(ctx, claims.Subject, claims.ID)))
			return next(c)
		}
	}
}

// RequireRole returns middleware that resolves the caller's role from
// storage and rejects the request unless it matches one of the given roles.
func RequireRole(resolve RoleResolver, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			role, err := resolve(ctx, userID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve role")
			}
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				"required role: "+strings.Join(roles, " or "))
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
