package events

import (
	"time"

	"github.com/voltswap/voltswap/core/model"
)

// ReservationEvent is published on every authoritative status transition.
type ReservationEvent struct {
	Reservation model.Reservation
	Previous    model.Status
	Actor       string
	Time        time.Time
}

// AvailabilityEvent is published when a station's slot counters change.
type AvailabilityEvent struct {
	StationID string
	Counts    model.SlotCounts
	Reason    string
	Time      time.Time
}

// StationFeedEvent is published for every upsert received from the
// station-management feed.
type StationFeedEvent struct {
	Station model.Station
	Created bool
	Time    time.Time
}
