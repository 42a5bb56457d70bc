package adminAuth

import (
	"strings"

	"github.com/MrEthical07/adminAuth/permission"
)

// Requirement is what a session needs before protected content may be shown.
type Requirement uint8

const (
	// RequiresLogin means no session is current.
	RequiresLogin Requirement = iota
	// RequiresApprovalWait means the session's role is still pending.
	RequiresApprovalWait
	// Allowed means protected content may be shown.
	Allowed
)

func (r Requirement) String() string {
	switch r {
	case RequiresLogin:
		return "requires_login"
	case RequiresApprovalWait:
		return "requires_approval_wait"
	case Allowed:
		return "allowed"
	}
	return "unknown"
}

// Gate classifies a session. It has no side effects.
func Gate(u *SessionUser) Requirement {
	switch StateOf(u) {
	case StateLoggedOut:
		return RequiresLogin
	case StatePendingApproval:
		return RequiresApprovalWait
	default:
		return Allowed
	}
}

// IsAdmin reports whether u is a signed-in administrator.
func IsAdmin(u *SessionUser) bool {
	return u != nil && u.Role == RoleAdmin
}

// Permits reports whether u may open the dashboard section perm (see the
// permission package for names). Only Allowed sessions hold any permission.
func Permits(u *SessionUser, perm string) bool {
	if Gate(u) != Allowed {
		return false
	}
	return permission.Dashboard().Allows(string(u.Role), perm)
}

// Routes are the paths a navigation controller redirects between.
type Routes struct {
	Login    string
	Register string
	Pending  string
	Home     string
	Admin    string
}

// DefaultRoutes returns the dashboard's routes.
func DefaultRoutes() Routes {
	return Routes{
		Login:    "/login",
		Register: "/register",
		Pending:  "/acesso-pendente",
		Home:     "/",
		Admin:    "/gerenciar-usuarios",
	}
}

// Destination returns where a session with requirement r belongs. Allowed has no
// fixed destination and returns "".
func (r Requirement) Destination(routes Routes) string {
	switch r {
	case RequiresLogin:
		return routes.Login
	case RequiresApprovalWait:
		return routes.Pending
	}
	return ""
}

// NextPath returns the redirect target for a session with requirement req that is
// currently at path current, or ok=false when no redirect is needed.
//
// Logged-out users may stay on the login and register pages. Pending users are held
// on the pending page. Allowed users are moved off the login, register, and pending
// pages to Home; anywhere else they stay.
func NextPath(req Requirement, current string, routes Routes) (string, bool) {
	current = cleanPath(current)

	switch req {
	case RequiresLogin:
		if samePath(current, routes.Login) || samePath(current, routes.Register) {
			return "", false
		}
		return routes.Login, true
	case RequiresApprovalWait:
		if samePath(current, routes.Pending) {
			return "", false
		}
		return routes.Pending, true
	default:
		if samePath(current, routes.Login) || samePath(current, routes.Register) || samePath(current, routes.Pending) {
			if samePath(current, routes.Home) {
				return "", false
			}
			return routes.Home, true
		}
		return "", false
	}
}

func samePath(a, b string) bool {
	return b != "" && a == cleanPath(b)
}

func cleanPath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}
