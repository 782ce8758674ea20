package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// SnapshotStore persists the latest snapshot outside the process so a cold
// cache can warm start. Load returns (nil, false, nil) on a miss.
type SnapshotStore interface {
	Load(ctx context.Context) (*models.Snapshot, bool, error)
	Save(ctx context.Context, snap *models.Snapshot, ttl time.Duration) error
}

// InMemoryStore implements SnapshotStore with a single TTL-bound slot.
// It is safe for concurrent use.
type InMemoryStore struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	snap      *models.Snapshot
	expiresAt time.Time
}

// NewInMemoryStore creates an in-memory store. A nil clock uses the real clock.
func NewInMemoryStore(clock clockwork.Clock) *InMemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryStore{clock: clock}
}

// Load returns the stored snapshot if present and not expired.
func (s *InMemoryStore) Load(ctx context.Context) (*models.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil || !s.clock.Now().Before(s.expiresAt) {
		return nil, false, nil
	}
	return s.snap, true, nil
}

// Save stores snap until ttl elapses.
func (s *InMemoryStore) Save(ctx context.Context, snap *models.Snapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.expiresAt = s.clock.Now().Add(ttl)
	return nil
}
