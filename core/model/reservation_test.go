package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusCompleted.Terminal())
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusConfirmed.Active())
	assert.False(t, StatusCancelled.Active())
	assert.False(t, StatusCompleted.Active())
}

func TestStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusExpired, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusExpired, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestReservationRemaining(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := Reservation{Status: StatusPending, CreatedAt: base, ExpiresAt: base.Add(30 * time.Minute)}

	assert.Equal(t, 30*time.Minute, r.Remaining(base))
	assert.Equal(t, 5*time.Minute, r.Remaining(base.Add(25*time.Minute)))
	assert.Zero(t, r.Remaining(base.Add(time.Hour)))

	confirmed := r
	confirmed.Status = StatusConfirmed
	assert.Zero(t, confirmed.Remaining(base))
}

func TestReservationEffectiveStatus(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	r := Reservation{Status: StatusPending, ExpiresAt: base.Add(30 * time.Minute)}

	assert.Equal(t, StatusPending, r.EffectiveStatus(base))
	assert.Equal(t, StatusExpired, r.EffectiveStatus(base.Add(30*time.Minute)))
	assert.Equal(t, StatusExpired, r.EffectiveStatus(base.Add(time.Hour)))

	// Only the pending state is projected; everything else reads as stored.
	done := Reservation{Status: StatusCompleted, ExpiresAt: base}
	assert.Equal(t, StatusCompleted, done.EffectiveStatus(base.Add(time.Hour)))
}
