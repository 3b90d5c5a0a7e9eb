// Package events defines the reservation domain events emitted on the event bus.
//
// Available event types:
//   - ReservationEvent: authoritative reservation status transition
//   - AvailabilityEvent: station slot counter change
//   - StationFeedEvent: station record upsert from the management feed
package events
