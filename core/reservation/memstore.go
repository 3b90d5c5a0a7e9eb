package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/voltswap/voltswap/core/model"
)

// MemoryStore is an in-process Store used by tests and single-node
// deployments without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]model.Reservation
	byUser    map[string][]string
	byStation map[string][]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:      map[string]model.Reservation{},
		byUser:    map[string][]string{},
		byStation: map[string][]string{},
	}
}

// Put inserts a new reservation.
func (s *MemoryStore) Put(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[r.ID]; ok {
		return fmt.Errorf("reservation %s already exists", r.ID)
	}
	s.data[r.ID] = r
	s.byUser[r.UserID] = append(s.byUser[r.UserID], r.ID)
	s.byStation[r.StationID] = append(s.byStation[r.StationID], r.ID)
	return nil
}

// Get returns a reservation by id.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return r, nil
}

// Update overwrites an existing reservation.
func (s *MemoryStore) Update(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[r.ID]; !ok {
		return fmt.Errorf("%s: %w", r.ID, ErrNotFound)
	}
	s.data[r.ID] = r
	return nil
}

func (s *MemoryStore) collect(ids []string) []model.Reservation {
	out := make([]model.Reservation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.data[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ListByUser returns the user's reservations, most recent first.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byUser[userID]), nil
}

// ListByStation returns the station's reservations, most recent first.
func (s *MemoryStore) ListByStation(_ context.Context, stationID string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byStation[stationID]), nil
}

// ListPending returns every pending reservation.
func (s *MemoryStore) ListPending(_ context.Context) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.data {
		if r.Status == model.StatusPending {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
