package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when the key is absent.
var ErrNotFound = errors.New("repository: not found")

// Store is the persistence boundary for hand-off state. Implementations must be
// safe for concurrent use; callers provide their own mutual exclusion for
// read-modify-write sequences.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Put(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context) ([]T, error)
}
