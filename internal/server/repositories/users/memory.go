package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
)

// MemoryRepository keeps identities in process memory. It is meant for
// local development and tests; data is lost on restart.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byPhone map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byPhone: make(map[string]string),
	}
}

func (r *MemoryRepository) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPhone[phone]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) Create(_ context.Context, phone, displayName string, createdAt time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPhone[phone]; exists {
		return nil, common.ErrConflict
	}

	ts := fromUnix(createdAt.Unix())
	u := &models.User{
		ID:          newUserID(),
		Phone:       phone,
		DisplayName: displayName,
		CreatedAt:   ts,
		UpdatedAt:   ts,
		LastLoginAt: ts,
	}
	r.byID[u.ID] = u
	r.byPhone[phone] = u.ID

	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) TouchLogin(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginAt = fromUnix(at.Unix())
	u.UpdatedAt = u.LastLoginAt
	return nil
}

func (r *MemoryRepository) Rename(_ context.Context, userID, displayName string, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.DisplayName = displayName
	u.UpdatedAt = fromUnix(at.Unix())

	cp := *u
	return &cp, nil
}

// Count returns the number of stored identities.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
