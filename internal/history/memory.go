package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

// ErrNotFound is returned when no history exists for an area.
var ErrNotFound = errors.New("no history for area")

// AreaStats summarises the retained history of one area.
type AreaStats struct {
	AreaID    string       `json:"areaId"`
	AreaName  string       `json:"areaName"`
	Count     int          `json:"count"`
	MeanScore float64      `json:"meanScore"`
	MaxScore  float64      `json:"maxScore"`
	LastLevel models.Level `json:"lastLevel"`
	LastAt    time.Time    `json:"lastAt"`
}

// MemoryStore keeps a bounded, time-ordered history per area.
// It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]Record
	clock clockwork.Clock

	maxPerArea int           // <= 0 is unlimited
	retention  time.Duration // <= 0 keeps records forever
}

// NewMemoryStore creates a MemoryStore. A nil clock uses the real clock.
func NewMemoryStore(maxPerArea int, retention time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		data:       make(map[string][]Record),
		clock:      clock,
		maxPerArea: maxPerArea,
		retention:  retention,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

// Emit appends one record per area and enforces the per-area limit.
func (s *MemoryStore) Emit(ctx context.Context, res *models.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := Records(res)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		list := append(s.data[r.AreaID], r)
		if s.maxPerArea > 0 && len(list) > s.maxPerArea {
			list = list[len(list)-s.maxPerArea:]
		}
		s.data[r.AreaID] = list
	}
	return nil
}

// Prune drops records older than the retention window and returns how many
// were removed.
func (s *MemoryStore) Prune() int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := s.clock.Now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, list := range s.data {
		i := sort.Search(len(list), func(i int) bool { return !list[i].AssessedAt.Before(cutoff) })
		if i == 0 {
			continue
		}
		removed += i
		if i == len(list) {
			delete(s.data, id)
			continue
		}
		s.data[id] = append([]Record(nil), list[i:]...)
	}
	return removed
}

// History returns the retained records for areaID, oldest first.
func (s *MemoryStore) History(areaID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.data[areaID]
	if !ok || len(list) == 0 {
		return nil, ErrNotFound
	}
	return append([]Record(nil), list...), nil
}

// Stats returns per-area summaries ordered by area ID.
func (s *MemoryStore) Stats() []AreaStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AreaStats, 0, len(s.data))
	for id, list := range s.data {
		if len(list) == 0 {
			continue
		}
		st := AreaStats{AreaID: id, Count: len(list)}
		var sum float64
		for _, r := range list {
			sum += r.Score
			if r.Score > st.MaxScore {
				st.MaxScore = r.Score
			}
		}
		last := list[len(list)-1]
		st.AreaName = last.AreaName
		st.MeanScore = sum / float64(len(list))
		st.LastLevel = last.Level
		st.LastAt = last.AssessedAt
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AreaID < out[j].AreaID })
	return out
}

// Len returns the total number of retained records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.data {
		n += len(list)
	}
	return n
}
