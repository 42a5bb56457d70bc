package adminAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminAuth/session"
	"github.com/MrEthical07/adminAuth/storage"
)

// LocalSessionManager persists the current SessionUser through session.Store.
type LocalSessionManager struct {
	store *session.Store
	now   func() time.Time
}

// NewLocalSessionManager stores the session under key in kv. An empty key selects
// session.DefaultKey.
func NewLocalSessionManager(kv storage.Store, key string) (*LocalSessionManager, error) {
	st, err := session.NewStore(kv, key)
	if err != nil {
		return nil, err
	}
	return &LocalSessionManager{store: st, now: time.Now}, nil
}

func (m *LocalSessionManager) Persist(ctx context.Context, user SessionUser) error {
	if user.ID == "" {
		return fmt.Errorf("%w: session user id required", ErrInvalidInput)
	}

	err := m.store.Persist(ctx, &session.Session{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: m.now().Unix(),
	})
	return wrapStorageErr(err)
}

// Current returns the stored session user. A stored value that cannot be decoded, or
// whose role is unknown, is cleared and reported as session.ErrCorruptSession.
func (m *LocalSessionManager) Current(ctx context.Context) (*SessionUser, error) {
	s, err := m.store.Current(ctx)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	if s == nil {
		return nil, nil
	}

	role, err := ParseRole(s.Role)
	if err != nil {
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			return nil, errors.Join(session.ErrCorruptSession, err, wrapStorageErr(clearErr))
		}
		return nil, fmt.Errorf("%w: %v", session.ErrCorruptSession, err)
	}

	return &SessionUser{ID: s.UserID, Name: s.Name, Email: s.Email, Role: role}, nil
}

func (m *LocalSessionManager) Clear(ctx context.Context) error {
	return wrapStorageErr(m.store.Clear(ctx))
}
