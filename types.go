package adminAuth

import (
	"fmt"
	"strings"
)

// Role is an account's authorization level. Values are the wire strings stored by
// the dashboard.
type Role string

const (
	// RolePending marks an account awaiting administrator approval.
	RolePending Role = "pendente"
	// RoleStandard is an approved regular user.
	RoleStandard Role = "usuario"
	// RolePremium is an approved user with the paid feature set.
	RolePremium Role = "premium"
	// RoleAdmin may manage other accounts' roles.
	RoleAdmin Role = "admin"
)

var roleAliases = map[string]Role{
	"pendente": RolePending,
	"pending":  RolePending,
	"usuario":  RoleStandard,
	"standard": RoleStandard,
	"user":     RoleStandard,
	"premium":  RolePremium,
	"admin":    RoleAdmin,
}

// ParseRole accepts the wire value or the English name of a role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePending, RoleStandard, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// Approved reports whether r grants access to the dashboard.
func (r Role) Approved() bool {
	return r.Valid() && r != RolePending
}

func (r Role) String() string { return string(r) }

// UserRecord is an account as exposed outside the credential backend. The stored
// secret is never part of it.
type UserRecord struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// SessionUser returns the session projection of u.
func (u UserRecord) SessionUser() SessionUser {
	return SessionUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// SessionUser is the identity of the signed-in user.
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// State is the Service's derived authentication state.
type State uint8

const (
	// StateLoggedOut means no session is current.
	StateLoggedOut State = iota
	// StatePendingApproval means a session is current but its role is pending.
	StatePendingApproval
	// StateAuthorized means a session with an approved role is current.
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StatePendingApproval:
		return "pending_approval"
	case StateAuthorized:
		return "authorized"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// StateOf derives the State for an optional session user.
func StateOf(u *SessionUser) State {
	switch {
	case u == nil:
		return StateLoggedOut
	case u.Role.Approved():
		return StateAuthorized
	default:
		return StatePendingApproval
	}
}

// Signal is what subscribers receive on every state change.
type Signal struct {
	State           State
	IsAuthenticated bool
	IsAuthorized    bool
	User            *SessionUser
}

func signalFor(u *SessionUser) Signal {
	st := StateOf(u)
	var user *SessionUser
	if u != nil {
		cp := *u
		user = &cp
	}
	return Signal{
		State:           st,
		IsAuthenticated: st != StateLoggedOut,
		IsAuthorized:    st == StateAuthorized,
		User:            user,
	}
}
