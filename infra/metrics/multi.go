package metrics

import (
	"time"

	coremetrics "github.com/voltswap/voltswap/core/metrics"
)

// MultiSink fans records out to multiple sinks. Optional recorders are
// forwarded only to the sinks implementing them.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordReservation forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordReservation(rec coremetrics.ReservationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordReservation(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordAvailability forwards slot counter snapshots.
func (m *MultiSink) RecordAvailability(rec coremetrics.AvailabilityRecord) error {
	for _, s := range m.Sinks {
		if ar, ok := s.(coremetrics.AvailabilityRecorder); ok {
			if err := ar.RecordAvailability(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStationFeed forwards feed upserts.
func (m *MultiSink) RecordStationFeed(rec coremetrics.FeedRecord) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(coremetrics.FeedRecorder); ok {
			if err := fr.RecordStationFeed(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordExpiryLag forwards expiry delays when supported by the sink.
func (m *MultiSink) RecordExpiryLag(lag time.Duration) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(coremetrics.ExpiryLagRecorder); ok {
			if err := lr.RecordExpiryLag(lag); err != nil {
				return err
			}
		}
	}
	return nil
}
