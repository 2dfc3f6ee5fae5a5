package session

import (
	"strings"

	"github.com/hkit/portal/internal/domain/profile"
)

// Well-known portal paths.
const (
	PathLogin        = "/login"
	PathRegister     = "/register"
	PathUnauthorized = "/unauthorized"

	PathMoHDashboard       = "/moh/dashboard"
	PathFacilityDashboard  = "/facility/dashboard"
	PathDeveloperDashboard = "/developer/dashboard"
)

var publicPaths = map[string]bool{
	"/":              true,
	PathLogin:        true,
	PathRegister:     true,
	PathUnauthorized: true,
}

var protectedPrefixes = []string{"/moh", "/facility", "/developer"}

// DashboardPath returns the landing page for a role. Ministry-internal
// roles share the MoH dashboard. Unset roles have no dashboard.
func DashboardPath(role profile.Role) string {
	switch role {
	case profile.RoleMoH, profile.RoleDataAnalyst, profile.RoleSystemDeveloper:
		return PathMoHDashboard
	case profile.RoleFacilityAdmin:
		return PathFacilityDashboard
	case profile.RoleDeveloper:
		return PathDeveloperDashboard
	default:
		return ""
	}
}

// rolePrefix returns the protected prefix a role is allowed under.
func rolePrefix(role profile.Role) string {
	switch role {
	case profile.RoleMoH, profile.RoleDataAnalyst, profile.RoleSystemDeveloper:
		return "/moh"
	case profile.RoleFacilityAdmin:
		return "/facility"
	case profile.RoleDeveloper:
		return "/developer"
	default:
		return ""
	}
}

// RedirectFor decides where a client currently on path should be sent given
// the session state and role. It returns the target path and true when a
// redirect is required, and ("", false) when the client may stay. Transient
// states never redirect.
func RedirectFor(state State, role profile.Role, path string) (string, bool) {
	if !state.Settled() {
		return "", false
	}

	switch state {
	case StateUnauthenticated:
		if hasProtectedPrefix(path) {
			return PathLogin, true
		}
		return "", false

	case StateAuthenticatedNoRole:
		// A roleless session parks on /unauthorized; /register stays
		// reachable so a pending user can complete registration.
		if path == PathRegister || path == PathUnauthorized {
			return "", false
		}
		return PathUnauthorized, true

	case StateAuthenticatedWithRole:
		if publicPaths[path] {
			return DashboardPath(role), true
		}
		if hasProtectedPrefix(path) && !strings.HasPrefix(path, rolePrefix(role)) {
			return PathUnauthorized, true
		}
		return "", false
	}
	return "", false
}

func hasProtectedPrefix(path string) bool {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
