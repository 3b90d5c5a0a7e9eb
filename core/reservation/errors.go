package reservation

import "errors"

// ErrInvalidDuration is returned when the requested hold window is outside
// the configured policy bounds.
var ErrInvalidDuration = errors.New("hold duration out of bounds")

// ErrInvalidTransition is returned when an operation is not permitted from
// the reservation's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotCancellable is returned when cancelling a reservation already in a
// terminal state.
var ErrNotCancellable = errors.New("reservation is not cancellable")

// ErrNotFound is returned for an unknown reservation id.
var ErrNotFound = errors.New("reservation not found")
