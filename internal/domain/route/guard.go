package route

import (
	"rewards/internal/domain/navigation"
	"rewards/internal/domain/role"
	"rewards/internal/domain/session"
)

// Kind is the outcome of a guard decision.
type Kind int

const (
	// Wait means the session store has not finished initializing; no decision yet.
	Wait Kind = iota
	// Render means the view may be shown.
	Render
	// RedirectLogin sends the browser to the public login route.
	RedirectLogin
	// RedirectHome sends the browser to the session role's home route.
	RedirectHome
	// NotFound means the path is not a route.
	NotFound
)

// String returns the outcome name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case Wait:
		return "wait"
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Decision is what the guard tells the caller to do.
type Decision struct {
	Kind     Kind
	Location string
	// ClearSession asks the caller to destroy a partial session before redirecting.
	ClearSession bool
}

// Decide gates a view on the current session.
// It is pure: the session is read, never mutated.
// PRE: ready reports whether the session store finished initializing; d is nil for unknown paths
// POST: Returns exactly one decision
func Decide(ready bool, s session.Session, d *Descriptor) Decision {
	if !ready {
		return Decision{Kind: Wait}
	}

	if d == nil {
		// Staff are confined to their own area even on unknown URLs.
		if s.Authenticated() && s.Role == role.Staff {
			return Decision{Kind: RedirectHome, Location: navigation.HomeRoute(role.Staff)}
		}
		return Decision{Kind: NotFound}
	}

	if d.Public() {
		return Decision{Kind: Render}
	}

	if !s.Authenticated() {
		return Decision{Kind: RedirectLogin, Location: navigation.LoginRoute, ClearSession: s.Partial()}
	}

	if d.Allows(s.Role) {
		return Decision{Kind: Render}
	}

	// Staff share some backend permissions with business but must never
	// reach business-only management screens.
	if s.Role == role.Staff && d.Allows(role.Business) {
		return Decision{Kind: RedirectHome, Location: navigation.HomeRoute(role.Staff)}
	}

	return Decision{Kind: RedirectLogin, Location: navigation.LoginRoute}
}
