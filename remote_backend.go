package adminAuth

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/MrEthical07/adminAuth/storage"
)

// RemoteIdentity is what a remote auth service returns for a signed-in or looked-up
// account: a stable id and a role string, plus the display fields.
type RemoteIdentity struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

func (r RemoteIdentity) record() (UserRecord, error) {
	if r.UserID == "" {
		return UserRecord{}, fmt.Errorf("%w: remote identity without id", ErrConnectivity)
	}
	role, err := ParseRole(r.Role)
	if err != nil {
		return UserRecord{}, err
	}
	return UserRecord{ID: r.UserID, Name: r.Name, Email: r.Email, Role: role}, nil
}

// RemoteAuthClient is the authentication surface of a remote service.
//
// SignIn must fail with an error wrapping ErrInvalidCredential for bad credentials,
// and transport failures must wrap ErrConnectivity. A successful SignIn only
// obtains a grant: it becomes the session that GetSession and directory calls use
// when CommitSession is called for the same user id. A grant that is never
// committed, such as one overtaken by a logout, must not survive a restart.
type RemoteAuthClient interface {
	SignUp(ctx context.Context, name, email, secret string) (RemoteIdentity, error)
	SignIn(ctx context.Context, email, secret string) (RemoteIdentity, error)
	CommitSession(ctx context.Context, userID string) error
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*RemoteIdentity, error)
	OnSessionChange(fn func(*RemoteIdentity)) (unsubscribe func())
}

// RemoteDirectory is the data-service surface used for account lookups and
// mutations. Authorization of mutations is enforced by the remote service as well.
type RemoteDirectory interface {
	FindByEmail(ctx context.Context, email string) (*RemoteIdentity, error)
	FindByID(ctx context.Context, id string) (*RemoteIdentity, error)
	List(ctx context.Context) ([]RemoteIdentity, error)
	UpdateRole(ctx context.Context, id, role string) (RemoteIdentity, error)
	UpdateProfile(ctx context.Context, id, name, email string) (RemoteIdentity, error)
	ChangePassword(ctx context.Context, id, oldSecret, newSecret string) error
}

// RemoteCredentials adapts a remote service to CredentialBackend.
//
// The remote service does not reveal whether an email exists on a failed sign-in, so
// Verify reports ErrInvalidCredential for both unknown emails and wrong secrets.
type RemoteCredentials struct {
	auth RemoteAuthClient
	dir  RemoteDirectory
}

// NewRemoteCredentials wraps auth and dir.
func NewRemoteCredentials(auth RemoteAuthClient, dir RemoteDirectory) (*RemoteCredentials, error) {
	if auth == nil || dir == nil {
		return nil, errors.New("remote auth client and directory required")
	}
	return &RemoteCredentials{auth: auth, dir: dir}, nil
}

func (r *RemoteCredentials) Register(ctx context.Context, name, email, secret string) (UserRecord, error) {
	if name == "" || email == "" || secret == "" {
		return UserRecord{}, fmt.Errorf("%w: name, email and secret are required", ErrInvalidInput)
	}
	if err := checkProfileLength(name, email); err != nil {
		return UserRecord{}, err
	}
	id, err := r.auth.SignUp(ctx, name, email, secret)
	if err != nil {
		return UserRecord{}, err
	}
	return id.record()
}

func (r *RemoteCredentials) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return optionalRecord(r.dir.FindByEmail(ctx, email))
}

func (r *RemoteCredentials) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	return optionalRecord(r.dir.FindByID(ctx, id))
}

func (r *RemoteCredentials) List(ctx context.Context) ([]UserRecord, error) {
	ids, err := r.dir.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := id.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RemoteCredentials) Verify(ctx context.Context, email, secret string) (UserRecord, error) {
	id, err := r.auth.SignIn(ctx, email, secret)
	if err != nil {
		return UserRecord{}, err
	}
	return id.record()
}

func (r *RemoteCredentials) UpdateRole(ctx context.Context, id string, role Role) (UserRecord, error) {
	if !role.Valid() {
		return UserRecord{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	updated, err := r.dir.UpdateRole(ctx, id, string(role))
	if err != nil {
		return UserRecord{}, err
	}
	return updated.record()
}

func (r *RemoteCredentials) UpdateProfile(ctx context.Context, id, name, email string) (UserRecord, error) {
	if name == "" || email == "" {
		return UserRecord{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if err := checkProfileLength(name, email); err != nil {
		return UserRecord{}, err
	}
	updated, err := r.dir.UpdateProfile(ctx, id, name, email)
	if err != nil {
		return UserRecord{}, err
	}
	return updated.record()
}

func (r *RemoteCredentials) ChangeSecret(ctx context.Context, id, oldSecret, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: new secret is required", ErrInvalidInput)
	}
	return r.dir.ChangePassword(ctx, id, oldSecret, newSecret)
}

// BootstrapDefaultAdmin is a no-op: remote administrators are provisioned by the
// remote service itself.
func (r *RemoteCredentials) BootstrapDefaultAdmin(context.Context) (bool, error) {
	return false, nil
}

// RemoteSessions adapts a remote service to SessionBackend. The identity is mirrored
// into local storage so a restart knows whom to revalidate; the remote session stays
// authoritative.
type RemoteSessions struct {
	auth   RemoteAuthClient
	mirror *LocalSessionManager

	// clearing is non-zero while Clear runs; the sign-out it causes is not
	// reported to watchers.
	clearing atomic.Int32
}

// NewRemoteSessions mirrors the session under key in kv.
func NewRemoteSessions(auth RemoteAuthClient, kv storage.Store, key string) (*RemoteSessions, error) {
	if auth == nil {
		return nil, errors.New("remote auth client required")
	}
	mirror, err := NewLocalSessionManager(kv, key)
	if err != nil {
		return nil, err
	}
	return &RemoteSessions{auth: auth, mirror: mirror}, nil
}

// Persist commits the remote grant obtained for user, if any, then mirrors user.
// The Service calls it only for the login that won, so a superseded grant is never
// stored.
func (r *RemoteSessions) Persist(ctx context.Context, user SessionUser) error {
	if err := r.auth.CommitSession(ctx, user.ID); err != nil {
		return err
	}
	return r.mirror.Persist(ctx, user)
}

// Current revalidates the mirrored identity with the remote service. When the
// remote session is gone the mirror is cleared; when it is unreachable the mirror is
// kept and the error returned.
func (r *RemoteSessions) Current(ctx context.Context) (*SessionUser, error) {
	mirrored, err := r.mirror.Current(ctx)
	if err != nil {
		return nil, err
	}

	remote, err := r.auth.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		if mirrored != nil {
			if err := r.mirror.Clear(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	rec, err := remote.record()
	if err != nil {
		return nil, err
	}
	fresh := rec.SessionUser()
	if mirrored == nil || *mirrored != fresh {
		if err := r.mirror.Persist(ctx, fresh); err != nil {
			return nil, err
		}
	}
	return &fresh, nil
}

// Clear drops the mirror first so the local state is logged out even when the
// remote sign-out fails.
func (r *RemoteSessions) Clear(ctx context.Context) error {
	r.clearing.Add(1)
	defer r.clearing.Add(-1)

	mirrorErr := r.mirror.Clear(ctx)
	signOutErr := r.auth.SignOut(ctx)
	return errors.Join(mirrorErr, signOutErr)
}

// Watch forwards remote session changes as session users. A nil user means the
// remote session ended. Sign-outs performed by Clear are not forwarded.
func (r *RemoteSessions) Watch(fn func(*SessionUser)) (unsubscribe func()) {
	return r.auth.OnSessionChange(func(id *RemoteIdentity) {
		if id == nil {
			if r.clearing.Load() > 0 {
				return
			}
			fn(nil)
			return
		}
		rec, err := id.record()
		if err != nil {
			return
		}
		u := rec.SessionUser()
		fn(&u)
	})
}

// NewRemoteBackends builds both adapters, mirroring the session under key in kv.
func NewRemoteBackends(auth RemoteAuthClient, dir RemoteDirectory, kv storage.Store, key string) (*RemoteCredentials, *RemoteSessions, error) {
	creds, err := NewRemoteCredentials(auth, dir)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := NewRemoteSessions(auth, kv, key)
	if err != nil {
		return nil, nil, err
	}
	return creds, sessions, nil
}

// SessionWatcher is implemented by session backends whose session can change
// outside the Service, such as a remote token expiring.
type SessionWatcher interface {
	Watch(fn func(*SessionUser)) (unsubscribe func())
}

func optionalRecord(id *RemoteIdentity, err error) (*UserRecord, error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if id == nil {
		return nil, nil
	}
	rec, err := id.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
