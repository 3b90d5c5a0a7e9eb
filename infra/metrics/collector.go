package metrics

import (
	"context"

	"github.com/voltswap/voltswap/core/events"
	coremetrics "github.com/voltswap/voltswap/core/metrics"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// reservation, availability and feed events. It stops when the context is
// canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.ReservationEvent:
					_ = sink.RecordReservation(coremetrics.ReservationRecord{
						ReservationID: e.Reservation.ID,
						StationID:     e.Reservation.StationID,
						UserID:        e.Reservation.UserID,
						Status:        e.Reservation.Status,
						Previous:      e.Previous,
						Actor:         e.Actor,
						Time:          e.Time,
					})
					if e.Reservation.Status == model.StatusExpired {
						if lr, ok := sink.(coremetrics.ExpiryLagRecorder); ok {
							if lag := e.Time.Sub(e.Reservation.ExpiresAt); lag > 0 {
								_ = lr.RecordExpiryLag(lag)
							}
						}
					}
				case events.AvailabilityEvent:
					if ar, ok := sink.(coremetrics.AvailabilityRecorder); ok {
						_ = ar.RecordAvailability(coremetrics.AvailabilityRecord{
							StationID: e.StationID,
							Counts:    e.Counts,
							Reason:    e.Reason,
							Time:      e.Time,
						})
					}
				case events.StationFeedEvent:
					if fr, ok := sink.(coremetrics.FeedRecorder); ok {
						_ = fr.RecordStationFeed(coremetrics.FeedRecord{
							StationID: e.Station.ID,
							Created:   e.Created,
							Time:      e.Time,
						})
					}
				}
			}
		}
	}()
}
