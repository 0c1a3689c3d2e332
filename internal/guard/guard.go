// Package guard contains the navigation decision functions gating protected
// and public routes. Guards are pure: they read a session snapshot and static
// route requirements, never the network, so they can be re-evaluated on every
// navigation and every session change.
package guard

import (
	"slices"

	"github.com/learnsphere/platform-client/internal/core/domain"
)

// Well-known navigation targets.
const (
	LoginPath      = "/login"
	AdminLoginPath = "/admin/login"
	DashboardPath  = "/dashboard"
)

// Denial reasons attached to role-based redirects, for the destination page
// to display.
const (
	ReasonAdminRequired          = "Access denied. Admin privileges required."
	ReasonInsufficientPermission = "Access denied. Insufficient permissions."
)

// Action is what the caller should do with the attempted navigation.
type Action int

const (
	// ActionWait means bootstrap has not finished; show a neutral waiting
	// indicator and decide nothing yet.
	ActionWait Action = iota
	// ActionAllow permits rendering the attempted route.
	ActionAllow
	// ActionRedirect sends the user to Target instead.
	ActionRedirect
)

// Decision is the outcome of evaluating a guard.
type Decision struct {
	Action Action
	// Target is the redirect destination when Action is ActionRedirect.
	Target string
	// From preserves the originally attempted location so login can return
	// the user there afterwards.
	From string
	// Reason is a human-readable denial explanation, set only for
	// role-based redirects.
	Reason string
}

// Requirement is the static configuration a protected route declares.
type Requirement struct {
	RequireAdmin bool
	// AllowedRoles, when non-empty, restricts access to the listed role IDs
	// on top of the authentication check.
	AllowedRoles []int
}

// Protected evaluates a guarded route. location is the attempted path,
// preserved on login redirects.
func Protected(s domain.Session, req Requirement, location string) Decision {
	if s.Loading {
		return Decision{Action: ActionWait}
	}

	if !s.IsAuthenticated {
		target := LoginPath
		if req.RequireAdmin {
			target = AdminLoginPath
		}
		return Decision{Action: ActionRedirect, Target: target, From: location}
	}

	if req.RequireAdmin && !s.User.IsAdmin() {
		return Decision{Action: ActionRedirect, Target: DashboardPath, Reason: ReasonAdminRequired}
	}

	if len(req.AllowedRoles) > 0 && !slices.Contains(req.AllowedRoles, s.User.RoleID) {
		return Decision{Action: ActionRedirect, Target: DashboardPath, Reason: ReasonInsufficientPermission}
	}

	return Decision{Action: ActionAllow}
}

// Public evaluates a login or landing route: an already-authenticated user is
// sent to the dashboard instead.
func Public(s domain.Session) Decision {
	if s.Loading {
		return Decision{Action: ActionWait}
	}
	if s.IsAuthenticated {
		return Decision{Action: ActionRedirect, Target: DashboardPath}
	}
	return Decision{Action: ActionAllow}
}
