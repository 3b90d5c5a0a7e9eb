package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voltswap/voltswap/core/events"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/infra/logger"
	"github.com/voltswap/voltswap/internal/eventbus"
)

// reservationNotice is the wire form of a reservation status change pushed to
// the rider's device.
type reservationNotice struct {
	ReservationID string       `json:"reservation_id"`
	StationID     string       `json:"station_id"`
	Status        model.Status `json:"status"`
	Previous      model.Status `json:"previous,omitempty"`
	ExpiresAt     time.Time    `json:"expires_at"`
	Time          time.Time    `json:"time"`
}

// ReservationNotifier forwards reservation transitions from the event bus to
// per-user MQTT topics.
type ReservationNotifier struct {
	client *Client
	prefix string
	log    logger.Logger
}

// NewReservationNotifier creates a notifier publishing through client.
func NewReservationNotifier(client *Client, prefix string) *ReservationNotifier {
	if prefix == "" {
		prefix = "reservations"
	}
	return &ReservationNotifier{
		client: client,
		prefix: prefix,
		log:    logger.New("reservation_notifier"),
	}
}

// Start subscribes to the bus and publishes until the context is canceled.
func (n *ReservationNotifier) Start(ctx context.Context, bus eventbus.EventBus) {
	if bus == nil {
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
				re, ok := ev.(events.ReservationEvent)
				if !ok {
					continue
				}
				n.notify(re)
			}
		}
	}()
}

func (n *ReservationNotifier) notify(ev events.ReservationEvent) {
	payload, err := json.Marshal(reservationNotice{
		ReservationID: ev.Reservation.ID,
		StationID:     ev.Reservation.StationID,
		Status:        ev.Reservation.Status,
		Previous:      ev.Previous,
		ExpiresAt:     ev.Reservation.ExpiresAt,
		Time:          ev.Time,
	})
	if err != nil {
		n.log.Errorf("encode notice for %s: %v", ev.Reservation.ID, err)
		return
	}
	topic := fmt.Sprintf("%s/%s/events", n.prefix, ev.Reservation.UserID)
	if err := n.client.Publish(topic, "event", payload); err != nil {
		n.log.Errorf("publish notice for %s: %v", ev.Reservation.ID, err)
		return
	}
	n.log.Debugf("notified %s of %s -> %s", ev.Reservation.UserID, ev.Reservation.ID, ev.Reservation.Status)
}
