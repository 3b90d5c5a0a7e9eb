package reservation

import (
	"context"

	"github.com/voltswap/voltswap/core/model"
)

// Store is the durable record of reservations. Implementations index by
// user and by station and never delete: terminal reservations are kept for
// history and audit. Status arithmetic stays in the Manager; a Store only
// persists what it is given.
type Store interface {
	// Put inserts a new reservation.
	Put(ctx context.Context, r model.Reservation) error
	// Get returns a reservation by id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Reservation, error)
	// Update overwrites an existing reservation, or returns ErrNotFound.
	Update(ctx context.Context, r model.Reservation) error
	// ListByUser returns the user's reservations, most recent first.
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)
	// ListByStation returns the station's reservations, most recent first.
	ListByStation(ctx context.Context, stationID string) ([]model.Reservation, error)
	// ListPending returns every reservation still in the pending state,
	// used to re-arm expiry timers after a restart.
	ListPending(ctx context.Context) ([]model.Reservation, error)
}
