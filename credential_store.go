package adminAuth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/adminAuth/password"
	"github.com/MrEthical07/adminAuth/session"
	"github.com/MrEthical07/adminAuth/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// storedUser is the on-disk account shape. SecretHash is an argon2id PHC string;
// LegacySecret is the plaintext field written by earlier dashboard releases and is
// replaced by a hash on the next write that touches the account.
type storedUser struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	Email        string `json:"email"`
	SecretHash   string `json:"senha_hash,omitempty"`
	LegacySecret string `json:"senha,omitempty"`
	Role         Role   `json:"role"`
}

func (u storedUser) record() UserRecord {
	return UserRecord{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// LocalCredentialStore keeps the whole account list as one JSON document under a
// single storage key. Every mutation builds the next document and writes it with a
// single Set, so a failed write leaves the previous document in place.
type LocalCredentialStore struct {
	kv             storage.Store
	key            string
	hasher         *password.Argon2
	bootstrap      BootstrapConfig
	upgradeOnLogin bool
	logger         zerolog.Logger
	newID          func() string

	mu sync.Mutex
}

// LocalCredentialOption customises a LocalCredentialStore.
type LocalCredentialOption func(*LocalCredentialStore)

// WithIDGenerator replaces uuid.NewString as the id source.
func WithIDGenerator(fn func() string) LocalCredentialOption {
	return func(s *LocalCredentialStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithCredentialLogger sets the logger used for best-effort hash upgrades.
func WithCredentialLogger(logger zerolog.Logger) LocalCredentialOption {
	return func(s *LocalCredentialStore) {
		s.logger = logger
	}
}

// NewLocalCredentialStore builds a store over kv using cfg's storage key, password
// parameters, and bootstrap identity.
func NewLocalCredentialStore(kv storage.Store, cfg Config, opts ...LocalCredentialOption) (*LocalCredentialStore, error) {
	if kv == nil {
		return nil, errors.New("credential storage required")
	}
	hasher, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}

	key := cfg.Storage.UsersKey
	if key == "" {
		key = DefaultUsersKey
	}

	s := &LocalCredentialStore{
		kv:             kv,
		key:            key,
		hasher:         hasher,
		bootstrap:      cfg.Bootstrap,
		upgradeOnLogin: cfg.Password.UpgradeOnLogin,
		logger:         zerolog.Nop(),
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a pending account. Emails are unique regardless of case.
func (s *LocalCredentialStore) Register(ctx context.Context, name, email, secret string) (UserRecord, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || secret == "" {
		return UserRecord{}, fmt.Errorf("%w: name, email and secret are required", ErrInvalidInput)
	}
	if err := checkProfileLength(name, email); err != nil {
		return UserRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	if indexByEmail(users, email) >= 0 {
		return UserRecord{}, ErrDuplicateEmail
	}

	hash, err := s.hash(secret)
	if err != nil {
		return UserRecord{}, err
	}

	u := storedUser{
		ID:         s.newID(),
		Name:       name,
		Email:      email,
		SecretHash: hash,
		Role:       RolePending,
	}
	if err := s.save(ctx, append(users, u)); err != nil {
		return UserRecord{}, err
	}
	return u.record(), nil
}

// FindByEmail returns the account with email, ignoring case, or nil.
func (s *LocalCredentialStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexByEmail(users, strings.TrimSpace(email))
	if i < 0 {
		return nil, nil
	}
	rec := users[i].record()
	return &rec, nil
}

// FindByID returns the account with id, or nil.
func (s *LocalCredentialStore) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexByID(users, id)
	if i < 0 {
		return nil, nil
	}
	rec := users[i].record()
	return &rec, nil
}

// List returns every account in registration order.
func (s *LocalCredentialStore) List(ctx context.Context) ([]UserRecord, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserRecord, 0, len(users))
	for _, u := range users {
		out = append(out, u.record())
	}
	return out, nil
}

// Verify checks secret against the account with email. A mismatch never writes.
// On a match, a legacy plaintext secret or an outdated hash is upgraded when
// UpgradeOnLogin is set; upgrade failures are logged and do not fail the call.
func (s *LocalCredentialStore) Verify(ctx context.Context, email, secret string) (UserRecord, error) {
	users, err := s.load(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	i := indexByEmail(users, strings.TrimSpace(email))
	if i < 0 {
		return UserRecord{}, ErrUnknownEmail
	}

	u := users[i]
	ok, err := s.matches(u, secret)
	if err != nil {
		return UserRecord{}, err
	}
	if !ok {
		return UserRecord{}, ErrInvalidCredential
	}

	if s.upgradeOnLogin && s.needsUpgrade(u) {
		if err := s.upgrade(ctx, u.ID, secret); err != nil {
			s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("secret hash upgrade failed")
		}
	}

	return u.record(), nil
}

// UpdateRole sets the role of account id. Authorization is the caller's job.
func (s *LocalCredentialStore) UpdateRole(ctx context.Context, id string, role Role) (UserRecord, error) {
	if !role.Valid() {
		return UserRecord{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	return s.mutate(ctx, id, func(_ []storedUser, u *storedUser) error {
		u.Role = role
		return nil
	})
}

// UpdateProfile replaces the name and email of account id.
func (s *LocalCredentialStore) UpdateProfile(ctx context.Context, id, name, email string) (UserRecord, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return UserRecord{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if err := checkProfileLength(name, email); err != nil {
		return UserRecord{}, err
	}

	return s.mutate(ctx, id, func(users []storedUser, u *storedUser) error {
		if j := indexByEmail(users, email); j >= 0 && users[j].ID != u.ID {
			return ErrDuplicateEmail
		}
		u.Name = name
		u.Email = email
		return nil
	})
}

// ChangeSecret replaces the secret of account id once oldSecret matches.
func (s *LocalCredentialStore) ChangeSecret(ctx context.Context, id, oldSecret, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: new secret is required", ErrInvalidInput)
	}

	_, err := s.mutate(ctx, id, func(_ []storedUser, u *storedUser) error {
		ok, err := s.matches(*u, oldSecret)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCredential
		}
		hash, err := s.hash(newSecret)
		if err != nil {
			return err
		}
		u.SecretHash = hash
		u.LegacySecret = ""
		return nil
	})
	return err
}

// BootstrapDefaultAdmin creates the configured administrator when no account exists.
// It returns created=false without writing when the list is non-empty or bootstrap
// is disabled.
func (s *LocalCredentialStore) BootstrapDefaultAdmin(ctx context.Context) (bool, error) {
	if !s.bootstrap.Enabled {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}

	hash, err := s.hash(s.bootstrap.AdminSecret)
	if err != nil {
		return false, err
	}
	admin := storedUser{
		ID:         s.newID(),
		Name:       s.bootstrap.AdminName,
		Email:      s.bootstrap.AdminEmail,
		SecretHash: hash,
		Role:       RoleAdmin,
	}
	if err := s.save(ctx, []storedUser{admin}); err != nil {
		return false, err
	}
	return true, nil
}

// mutate applies fn to a copy of the account with id and saves the result.
// Nothing is written when fn fails.
func (s *LocalCredentialStore) mutate(ctx context.Context, id string, fn func(users []storedUser, u *storedUser) error) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	i := indexByID(users, id)
	if i < 0 {
		return UserRecord{}, ErrNotFound
	}

	next := make([]storedUser, len(users))
	copy(next, users)
	if err := fn(users, &next[i]); err != nil {
		return UserRecord{}, err
	}
	if err := s.hashLegacy(&next[i]); err != nil {
		return UserRecord{}, err
	}

	if err := s.save(ctx, next); err != nil {
		return UserRecord{}, err
	}
	return next[i].record(), nil
}

func (s *LocalCredentialStore) upgrade(ctx context.Context, id, secret string) error {
	_, err := s.mutate(ctx, id, func(_ []storedUser, u *storedUser) error {
		hash, err := s.hash(secret)
		if err != nil {
			return err
		}
		u.SecretHash = hash
		u.LegacySecret = ""
		return nil
	})
	return err
}

func (s *LocalCredentialStore) hashLegacy(u *storedUser) error {
	if u.LegacySecret == "" || u.SecretHash != "" {
		u.LegacySecret = ""
		return nil
	}
	hash, err := s.hash(u.LegacySecret)
	if err != nil {
		return err
	}
	u.SecretHash = hash
	u.LegacySecret = ""
	return nil
}

func (s *LocalCredentialStore) matches(u storedUser, secret string) (bool, error) {
	if u.SecretHash != "" {
		ok, err := s.hasher.Verify(secret, u.SecretHash)
		if errors.Is(err, password.ErrPasswordTooLong) {
			return false, nil
		}
		return ok, err
	}
	if u.LegacySecret != "" {
		return subtle.ConstantTimeCompare([]byte(secret), []byte(u.LegacySecret)) == 1, nil
	}
	return false, nil
}

func (s *LocalCredentialStore) needsUpgrade(u storedUser) bool {
	if u.SecretHash == "" {
		return u.LegacySecret != ""
	}
	upgrade, err := s.hasher.NeedsUpgrade(u.SecretHash)
	return err == nil && upgrade
}

func (s *LocalCredentialStore) hash(secret string) (string, error) {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return hash, nil
}

func (s *LocalCredentialStore) load(ctx context.Context) ([]storedUser, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var users []storedUser
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return users, nil
}

func (s *LocalCredentialStore) save(ctx context.Context, users []storedUser) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return wrapStorageErr(err)
	}
	return nil
}

func indexByEmail(users []storedUser, email string) int {
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return i
		}
	}
	return -1
}

func indexByID(users []storedUser, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

func wrapStorageErr(err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return err
}

// checkProfileLength rejects names and emails that could not be carried by a
// session.
func checkProfileLength(name, email string) error {
	if len(name) > session.MaxTextBytes || len(email) > session.MaxTextBytes {
		return fmt.Errorf("%w: name and email are limited to %d bytes", ErrInvalidInput, session.MaxTextBytes)
	}
	return nil
}
