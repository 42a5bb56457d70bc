package storage

import (
	"context"
	"errors"
)

// ErrUnavailable is wrapped by every implementation when the underlying medium
// cannot be read or written.
var ErrUnavailable = errors.New("storage unavailable")

// Store is the key-value resource shared by the local backends.
//
// Get reports ok=false for a missing key. Remove of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
