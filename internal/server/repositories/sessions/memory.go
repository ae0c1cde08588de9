package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/clock"
	"github.com/dmitrijs2005/rtcauth/internal/common"
)

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryRepository keeps sessions in process memory, expiring them against
// the injected clock.
type MemoryRepository struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]memoryEntry
}

func NewMemoryRepository(c clock.Clock) *MemoryRepository {
	return &MemoryRepository{clock: c, entries: make(map[string]memoryEntry)}
}

func (r *MemoryRepository) Put(_ context.Context, token, userID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key(token)] = memoryEntry{userID: userID, expiresAt: r.clock.Now().Add(ttl)}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.live(key(token))
	if !ok {
		return "", common.ErrorNotFound
	}
	return e.userID, nil
}

func (r *MemoryRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key(token))
	return nil
}

func (r *MemoryRepository) Refresh(_ context.Context, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(token)
	e, ok := r.live(k)
	if !ok {
		return false, nil
	}
	e.expiresAt = r.clock.Now().Add(ttl)
	r.entries[k] = e
	return true, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var n int64
	for k, e := range r.entries {
		if !now.Before(e.expiresAt) {
			delete(r.entries, k)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions, expired ones included.
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// live must be called with mu held.
func (r *MemoryRepository) live(k string) (memoryEntry, bool) {
	e, ok := r.entries[k]
	if !ok {
		return memoryEntry{}, false
	}
	if !r.clock.Now().Before(e.expiresAt) {
		delete(r.entries, k)
		return memoryEntry{}, false
	}
	return e, true
}
