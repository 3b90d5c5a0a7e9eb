package metrics

import (
	"time"

	"github.com/voltswap/voltswap/core/model"
)

// ReservationRecord represents a reservation status transition to be recorded.
type ReservationRecord struct {
	ReservationID string
	StationID     string
	UserID        string
	Status        model.Status
	Previous      model.Status
	Actor         string
	Time          time.Time
}

// MetricsSink records reservation transitions for observability purposes.
type MetricsSink interface {
	RecordReservation(rec ReservationRecord) error
}

// AvailabilityRecord is a snapshot of one station's slot counters.
type AvailabilityRecord struct {
	StationID string
	Counts    model.SlotCounts
	Reason    string
	Time      time.Time
}

// AvailabilityRecorder is implemented by sinks able to record slot counters.
type AvailabilityRecorder interface {
	RecordAvailability(rec AvailabilityRecord) error
}

// FeedRecord captures a station upsert from the management feed.
type FeedRecord struct {
	StationID string
	Created   bool
	Time      time.Time
}

// FeedRecorder is implemented by sinks able to record feed liveness.
type FeedRecorder interface {
	RecordStationFeed(rec FeedRecord) error
}

// ExpiryLagRecorder records the delay between a hold window elapsing and the
// authoritative expiry transition landing.
type ExpiryLagRecorder interface {
	RecordExpiryLag(lag time.Duration) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordReservation(ReservationRecord) error   { return nil }
func (NopSink) RecordAvailability(AvailabilityRecord) error { return nil }
func (NopSink) RecordStationFeed(FeedRecord) error          { return nil }
func (NopSink) RecordExpiryLag(time.Duration) error         { return nil }
