package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/voltswap/voltswap/core/logger"
	"github.com/voltswap/voltswap/core/model"
)

// Expirer lands the authoritative expiry transition. Implemented by the
// reservation manager.
type Expirer interface {
	Expire(ctx context.Context, id string) error
}

// ExpiryScheduler holds one pending timer per reservation id.
type ExpiryScheduler struct {
	expirer Expirer
	log     logger.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New creates an ExpiryScheduler delivering to the given expirer.
func New(expirer Expirer, log logger.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		expirer: expirer,
		log:     log,
		timers:  map[string]*time.Timer{},
	}
}

// Arm schedules a one-shot expiry at the given time, replacing any timer
// already held for the id. A time in the past fires immediately.
func (s *ExpiryScheduler) Arm(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	s.timers[id] = time.AfterFunc(d, func() { s.fire(id) })
}

// Disarm removes the pending timer for the id if it has not yet fired.
// A fire already in flight is harmless because expire is idempotent.
func (s *ExpiryScheduler) Disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *ExpiryScheduler) fire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()
	if err := s.expirer.Expire(context.Background(), id); err != nil {
		s.log.Errorf("expire %s: %v", id, err)
	}
}

// Restore re-arms timers for pending reservations after a restart. Holds
// whose window already elapsed fire immediately.
func (s *ExpiryScheduler) Restore(ctx context.Context, pending []model.Reservation) {
	for _, r := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.Arm(r.ID, r.ExpiresAt)
	}
	s.log.Infof("restored %d expiry timers", len(pending))
}

// Armed reports whether a timer is currently pending for the id.
func (s *ExpiryScheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Len returns the number of pending timers.
func (s *ExpiryScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops every pending timer. Timers already firing complete on their
// own; expire tolerates them.
func (s *ExpiryScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
