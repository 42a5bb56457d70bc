package adminAuth

import "context"

// CredentialBackend owns accounts and their secrets.
//
// Implementations must leave the stored account untouched when a mutation fails and
// must never write during Verify when the secret does not match.
type CredentialBackend interface {
	Register(ctx context.Context, name, email, secret string) (UserRecord, error)
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	FindByID(ctx context.Context, id string) (*UserRecord, error)
	List(ctx context.Context) ([]UserRecord, error)
	Verify(ctx context.Context, email, secret string) (UserRecord, error)
	UpdateRole(ctx context.Context, id string, role Role) (UserRecord, error)
	UpdateProfile(ctx context.Context, id, name, email string) (UserRecord, error)
	ChangeSecret(ctx context.Context, id, oldSecret, newSecret string) error
	BootstrapDefaultAdmin(ctx context.Context) (created bool, err error)
}

// SessionBackend owns the single current session.
//
// Current returns nil without error when no session is stored.
type SessionBackend interface {
	Persist(ctx context.Context, user SessionUser) error
	Current(ctx context.Context) (*SessionUser, error)
	Clear(ctx context.Context) error
}
