package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/events"
	"github.com/voltswap/voltswap/core/logger"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/internal/eventbus"
)

// ExpiryTimers is the scheduler surface the manager drives. Arm replaces any
// timer already held for the id.
type ExpiryTimers interface {
	Arm(id string, at time.Time)
	Disarm(id string)
}

// CreateRequest carries the parameters of a booking attempt.
type CreateRequest struct {
	UserID      string
	StationID   string
	VehicleID   string
	HoldMinutes int
}

// Manager owns every reservation status transition. Transitions on a given
// reservation id are mutually exclusive, so cancel, confirm and expire racing
// on the same id can never release the held unit twice.
type Manager struct {
	cfg     Config
	tracker *availability.Tracker
	store   Store
	bus     eventbus.EventBus
	log     logger.Logger

	timersMu sync.Mutex
	timers   ExpiryTimers

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager. The tracker, store and logger are required;
// the bus is optional.
func NewManager(cfg Config, tracker *availability.Tracker, store Store, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if tracker == nil || store == nil || log == nil {
		return nil, fmt.Errorf("reservation: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:     cfg,
		tracker: tracker,
		store:   store,
		bus:     bus,
		log:     log,
		now:     time.Now,
		locks:   map[string]*sync.Mutex{},
	}, nil
}

// SetTimers configures the expiry scheduler. Wired after construction because
// the scheduler needs the manager as its expirer.
func (m *Manager) SetTimers(t ExpiryTimers) {
	m.timersMu.Lock()
	m.timers = t
	m.timersMu.Unlock()
}

func (m *Manager) arm(id string, at time.Time) {
	m.timersMu.Lock()
	t := m.timers
	m.timersMu.Unlock()
	if t != nil {
		t.Arm(id, at)
	}
}

func (m *Manager) disarm(id string) {
	m.timersMu.Lock()
	t := m.timers
	m.timersMu.Unlock()
	if t != nil {
		t.Disarm(id)
	}
}

// lockFor returns the mutex serializing transitions on one reservation id.
func (m *Manager) lockFor(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Manager) publish(r model.Reservation, prev model.Status, actor string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.ReservationEvent{
		Reservation: r,
		Previous:    prev,
		Actor:       actor,
		Time:        m.now(),
	})
}

// Create books one battery unit at the station. The availability check and
// decrement are a single atomic unit inside the tracker, so concurrent
// callers can never oversell a unit. On success an expiry timer is armed for
// the end of the hold window.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	if req.UserID == "" || req.StationID == "" {
		return model.Reservation{}, fmt.Errorf("user id and station id are required")
	}
	if req.HoldMinutes < m.cfg.MinHoldMinutes || req.HoldMinutes > m.cfg.MaxHoldMinutes {
		return model.Reservation{}, fmt.Errorf("%d minutes (allowed %d-%d): %w",
			req.HoldMinutes, m.cfg.MinHoldMinutes, m.cfg.MaxHoldMinutes, ErrInvalidDuration)
	}

	if err := m.tracker.TryReserve(req.StationID); err != nil {
		return model.Reservation{}, err
	}

	now := m.now()
	r := model.Reservation{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		StationID:   req.StationID,
		VehicleID:   req.VehicleID,
		Status:      model.StatusPending,
		HoldMinutes: req.HoldMinutes,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(req.HoldMinutes) * time.Minute),
		UpdatedAt:   now,
	}
	if err := m.store.Put(ctx, r); err != nil {
		// Hand the unit back; the booking never happened.
		if relErr := m.tracker.Release(req.StationID); relErr != nil {
			m.log.Errorf("release after failed insert on %s: %v", req.StationID, relErr)
		}
		return model.Reservation{}, fmt.Errorf("persist reservation: %w", err)
	}
	m.arm(r.ID, r.ExpiresAt)
	m.publish(r, "", "rider")
	m.log.Infof("reservation %s created at %s for %s (holds %dm)", r.ID, r.StationID, r.UserID, r.HoldMinutes)
	return r, nil
}

// Confirm records the rider's check-in at the station kiosk. Valid from
// pending only. Depending on policy the expiry timer is disarmed or re-armed
// to bound the swap session.
func (m *Manager) Confirm(ctx context.Context, id string) (model.Reservation, error) {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.Status != model.StatusPending {
		return model.Reservation{}, fmt.Errorf("confirm from %s: %w", r.Status, ErrInvalidTransition)
	}
	prev := r.Status
	r.Status = model.StatusConfirmed
	r.UpdatedAt = m.now()
	if m.cfg.SessionMinutes > 0 {
		r.ExpiresAt = r.UpdatedAt.Add(time.Duration(m.cfg.SessionMinutes) * time.Minute)
	}
	if err := m.store.Update(ctx, r); err != nil {
		return model.Reservation{}, fmt.Errorf("persist confirm: %w", err)
	}
	if m.cfg.SessionMinutes > 0 {
		m.arm(r.ID, r.ExpiresAt)
	} else {
		m.disarm(r.ID)
	}
	m.publish(r, prev, "kiosk")
	m.log.Infof("reservation %s confirmed", r.ID)
	return r, nil
}

// Cancel aborts an active reservation and returns the held unit to the pool.
// Valid from pending or confirmed; terminal states fail with ErrNotCancellable.
func (m *Manager) Cancel(ctx context.Context, id, actor string) (model.Reservation, error) {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.Status.Terminal() {
		return model.Reservation{}, fmt.Errorf("cancel from %s: %w", r.Status, ErrNotCancellable)
	}
	prev := r.Status
	r.Status = model.StatusCancelled
	r.UpdatedAt = m.now()
	if err := m.store.Update(ctx, r); err != nil {
		return model.Reservation{}, fmt.Errorf("persist cancel: %w", err)
	}
	m.disarm(r.ID)
	if err := m.tracker.Release(r.StationID); err != nil {
		m.log.Errorf("release on cancel of %s: %v", r.ID, err)
	}
	m.publish(r, prev, actor)
	m.log.Infof("reservation %s cancelled by %s", r.ID, actor)
	return r, nil
}

// Complete closes a confirmed reservation after the battery was dispensed.
// The unit is consumed, not returned to the pool: the swap-execution system
// removed it at dispense time and the station feed will report the swapped-in
// battery once it charges.
func (m *Manager) Complete(ctx context.Context, id string) (model.Reservation, error) {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.Status != model.StatusConfirmed {
		return model.Reservation{}, fmt.Errorf("complete from %s: %w", r.Status, ErrInvalidTransition)
	}
	prev := r.Status
	r.Status = model.StatusCompleted
	r.UpdatedAt = m.now()
	if err := m.store.Update(ctx, r); err != nil {
		return model.Reservation{}, fmt.Errorf("persist complete: %w", err)
	}
	m.disarm(r.ID)
	if err := m.tracker.Consume(r.StationID); err != nil {
		m.log.Errorf("consume on complete of %s: %v", r.ID, err)
	}
	m.publish(r, prev, "kiosk")
	m.log.Infof("reservation %s completed", r.ID)
	return r, nil
}

// Expire is invoked by the scheduler when a hold window elapses. It is
// idempotent: expiring a terminal reservation is a no-op, not an error, so
// races between a timer firing and a concurrent disarm stay safe. A pending
// reservation expires unconditionally; a confirmed one only when a session
// window was armed and has genuinely elapsed.
func (m *Manager) Expire(ctx context.Context, id string) error {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	r, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status.Terminal() {
		return nil
	}
	if r.Status == model.StatusConfirmed {
		if m.cfg.SessionMinutes <= 0 || m.now().Before(r.ExpiresAt) {
			// Stale fire racing a confirm; the countdown no longer applies.
			return nil
		}
	}
	prev := r.Status
	r.Status = model.StatusExpired
	r.UpdatedAt = m.now()
	if err := m.store.Update(ctx, r); err != nil {
		return fmt.Errorf("persist expire: %w", err)
	}
	if err := m.tracker.Release(r.StationID); err != nil {
		m.log.Errorf("release on expiry of %s: %v", r.ID, err)
	}
	m.publish(r, prev, "scheduler")
	m.log.Infof("reservation %s expired", r.ID)
	return nil
}

// Get returns a reservation by id.
func (m *Manager) Get(ctx context.Context, id string) (model.Reservation, error) {
	return m.store.Get(ctx, id)
}

// ListForUser returns the user's reservations, most recent first.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return m.store.ListByUser(ctx, userID)
}

// ListForStation returns the station's reservations, most recent first.
func (m *Manager) ListForStation(ctx context.Context, stationID string) ([]model.Reservation, error) {
	return m.store.ListByStation(ctx, stationID)
}

// ListPending returns every pending reservation, oldest first. Used to
// restore expiry timers after a restart.
func (m *Manager) ListPending(ctx context.Context) ([]model.Reservation, error) {
	return m.store.ListPending(ctx)
}
