// Package users declares the identity store contract and its SQL and
// in-memory implementations.
package users

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/server/models"
	"github.com/google/uuid"
)

// Repository is the durable store of user identities. Phone uniqueness is
// enforced here and nowhere else.
type Repository interface {
	// GetByPhone returns the active user for phone or common.ErrorNotFound.
	GetByPhone(ctx context.Context, phone string) (*models.User, error)

	// GetByID returns the active user with id or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// Create inserts a new user. It returns common.ErrConflict when the phone
	// is already taken.
	Create(ctx context.Context, phone, displayName string, createdAt time.Time) (*models.User, error)

	// TouchLogin records a successful login. A missing or inactive user is
	// reported as common.ErrorNotFound.
	TouchLogin(ctx context.Context, userID string, at time.Time) error

	// Rename changes the display name and returns the updated row. A missing
	// or inactive user is reported as common.ErrorNotFound.
	Rename(ctx context.Context, userID, displayName string, at time.Time) (*models.User, error)
}

// newUserID is a seam for tests; ids are dashless uuid4 hex.
var newUserID = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
