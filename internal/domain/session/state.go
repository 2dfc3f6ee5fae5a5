// Package session tracks the authenticated user's lifecycle for a portal
// client: anonymous, signing in, waiting for the profile to land, and fully
// authorized. A single Manager owns the state; everything else observes it
// through snapshots and events.
package session

// State is the lifecycle phase of the portal session.
type State string

const (
	// StateInitializing holds until the stored session (if any) has been
	// checked. No routing decisions are made in this state.
	StateInitializing State = "initializing"

	// StateUnauthenticated means no live session exists.
	StateUnauthenticated State = "unauthenticated"

	// StateAuthenticatedPendingProfile means credentials were accepted and
	// the profile lookup is in flight.
	StateAuthenticatedPendingProfile State = "authenticated_pending_profile"

	// StateAuthenticatedWithRole means the session is live and the profile
	// carries a role assignment.
	StateAuthenticatedWithRole State = "authenticated_with_role"

	// StateAuthenticatedNoRole means the session is live but no role is
	// assigned, either because registration is still pending or because the
	// profile load degraded.
	StateAuthenticatedNoRole State = "authenticated_no_role"
)

// Authenticated reports whether the state carries a live session.
func (s State) Authenticated() bool {
	switch s {
	case StateAuthenticatedPendingProfile, StateAuthenticatedWithRole, StateAuthenticatedNoRole:
		return true
	}
	return false
}

// Settled reports whether the state is a resting state that routing may act
// on. Initializing and pending-profile are transient.
func (s State) Settled() bool {
	switch s {
	case StateUnauthenticated, StateAuthenticatedWithRole, StateAuthenticatedNoRole:
		return true
	}
	return false
}
