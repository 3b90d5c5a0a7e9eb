package model

import (
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether the reservation still holds a battery unit.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether the state graph allows moving to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		switch next {
		case StatusConfirmed, StatusCancelled, StatusExpired:
			return true
		}
	case StatusConfirmed:
		switch next {
		case StatusCompleted, StatusCancelled, StatusExpired:
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Reservation is a time-boxed hold on one battery unit at a station.
// Records are never deleted; terminal reservations are kept for audit.
type Reservation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	StationID   string    `json:"station_id"`
	VehicleID   string    `json:"vehicle_id,omitempty"`
	Status      Status    `json:"status"`
	HoldMinutes int       `json:"hold_minutes"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Remaining returns the time left on the hold window at now,
// never negative. Zero for any non-pending reservation.
func (r Reservation) Remaining(now time.Time) time.Duration {
	if r.Status != StatusPending {
		return 0
	}
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// EffectiveStatus is the status to report to readers. A pending reservation
// whose window has elapsed is shown as expired even before the scheduler
// lands the authoritative transition.
func (r Reservation) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusPending && !now.Before(r.ExpiresAt) {
		return StatusExpired
	}
	return r.Status
}
