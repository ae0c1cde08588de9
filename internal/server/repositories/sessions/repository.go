// Package sessions declares the session store contract and its Redis, SQL
// and in-memory implementations. A session maps an opaque token to the
// user id it was issued for until its TTL lapses.
package sessions

import (
	"context"
	"time"
)

// KeyPrefix namespaces session keys in key-value backends.
const KeyPrefix = "session:"

// Repository stores sessions with a time-to-live.
type Repository interface {
	// Put stores token -> userID, overwriting any previous value, expiring
	// after ttl.
	Put(ctx context.Context, token, userID string, ttl time.Duration) error

	// Get returns the user id bound to token. Unknown or expired tokens are
	// reported as common.ErrorNotFound.
	Get(ctx context.Context, token string) (string, error)

	// Delete removes token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error

	// Refresh resets the expiry of a live token to now+ttl and reports
	// whether it existed.
	Refresh(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// Sweeper is implemented by backends that do not expire entries on their
// own and need a periodic purge.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func key(token string) string { return KeyPrefix + token }
