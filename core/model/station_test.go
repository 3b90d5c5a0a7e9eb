package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hhmm string) time.Time {
	t, _ := time.Parse("15:04", hhmm)
	return t
}

func TestLocationValid(t *testing.T) {
	assert.True(t, Location{Lat: 48.85, Lng: 2.35}.Valid())
	assert.True(t, Location{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Location{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Location{Lat: 0, Lng: -181}.Valid())
}

func TestSlotCountsValidate(t *testing.T) {
	assert.NoError(t, SlotCounts{Total: 10, Available: 3, Charging: 4, Maintenance: 1, Reserved: 2}.Validate())
	assert.NoError(t, SlotCounts{}.Validate())
	assert.Error(t, SlotCounts{Total: 10, Available: 5, Charging: 4}.Validate())
	assert.Error(t, SlotCounts{Total: 2, Available: 3, Charging: -1}.Validate())
}

func TestSlotCountsOccupancy(t *testing.T) {
	assert.InDelta(t, 0.7, SlotCounts{Total: 10, Available: 3, Charging: 7}.Occupancy(), 1e-9)
	assert.Equal(t, 1.0, SlotCounts{}.Occupancy())
	assert.Equal(t, 0.0, SlotCounts{Total: 4, Available: 4}.Occupancy())
}

func TestOperatingWindowContains(t *testing.T) {
	day := OperatingWindow{Open: "08:00", Close: "20:00"}
	assert.True(t, day.Contains(at("08:00")))
	assert.True(t, day.Contains(at("19:59")))
	assert.False(t, day.Contains(at("20:00")))
	assert.False(t, day.Contains(at("03:00")))

	night := OperatingWindow{Open: "22:00", Close: "06:00"}
	assert.True(t, night.Contains(at("23:30")))
	assert.True(t, night.Contains(at("05:59")))
	assert.False(t, night.Contains(at("06:00")))
	assert.False(t, night.Contains(at("12:00")))

	assert.True(t, OperatingWindow{AlwaysOpen: true}.Contains(at("03:00")))
	// Degenerate zero-length window never matches.
	assert.False(t, OperatingWindow{Open: "09:00", Close: "09:00"}.Contains(at("09:00")))
}

func TestOperatingWindowValidate(t *testing.T) {
	assert.NoError(t, OperatingWindow{AlwaysOpen: true}.Validate())
	assert.NoError(t, OperatingWindow{Open: "08:00", Close: "20:00"}.Validate())
	assert.Error(t, OperatingWindow{Open: "8am", Close: "20:00"}.Validate())
	assert.Error(t, OperatingWindow{Open: "08:00", Close: "25:99"}.Validate())
}

func TestStationValidate(t *testing.T) {
	st := Station{
		ID:       "st-1",
		Name:     "Bastille",
		Location: Location{Lat: 48.85, Lng: 2.37},
		Window:   OperatingWindow{AlwaysOpen: true},
		Slots:    SlotCounts{Total: 8, Available: 5, Charging: 3},
	}
	assert.NoError(t, st.Validate())

	missing := st
	missing.ID = ""
	assert.Error(t, missing.Validate())

	offMap := st
	offMap.Location.Lat = 120
	assert.Error(t, offMap.Validate())

	badSlots := st
	badSlots.Slots.Available = 9
	assert.Error(t, badSlots.Validate())
}
