package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/adminAuth/storage"
)

// DefaultKey is the storage key holding the current session.
const DefaultKey = "pk_system_current_user"

// Store keeps at most one session under a single key of a [storage.Store].
type Store struct {
	kv  storage.Store
	key string
}

// NewStore returns a Store writing to key. An empty key selects DefaultKey.
func NewStore(kv storage.Store, key string) (*Store, error) {
	if kv == nil {
		return nil, errors.New("session storage required")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key}, nil
}

// Persist replaces the current session with s.
func (st *Store) Persist(ctx context.Context, s *Session) error {
	value, err := EncodeString(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := st.kv.Set(ctx, st.key, value); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Current returns the stored session, or nil when none is stored.
//
// A value that cannot be decoded is removed and reported as ErrCorruptSession
// together with a nil session. Legacy values are rewritten in the current layout.
func (st *Store) Current(ctx context.Context) (*Session, error) {
	value, ok, err := st.kv.Get(ctx, st.key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	s, err := DecodeString(value)
	if err != nil {
		if rmErr := st.kv.Remove(ctx, st.key); rmErr != nil {
			return nil, errors.Join(err, rmErr)
		}
		return nil, err
	}

	if s.SchemaVersion != CurrentSchemaVersion {
		s.SchemaVersion = CurrentSchemaVersion
		if err := st.Persist(ctx, s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (st *Store) Clear(ctx context.Context) error {
	if err := st.kv.Remove(ctx, st.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
