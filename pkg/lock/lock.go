package lock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be acquired before the wait deadline.
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// Release gives a held lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker serialises work on a key across callers.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}
