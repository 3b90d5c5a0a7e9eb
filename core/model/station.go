package model

import (
	"fmt"
	"time"
)

// Location is a geographic point in signed decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are within the WGS84 domain.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// SlotCounts tracks the batteries of a station by state. The counts always
// satisfy Available+Charging+Maintenance+Reserved == Total.
type SlotCounts struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Charging    int `json:"charging"`
	Maintenance int `json:"maintenance"`
	Reserved    int `json:"reserved"`
}

// Validate checks the slot accounting invariant.
func (c SlotCounts) Validate() error {
	if c.Available < 0 || c.Charging < 0 || c.Maintenance < 0 || c.Reserved < 0 {
		return fmt.Errorf("slot counts must be non-negative: %+v", c)
	}
	if c.Available+c.Charging+c.Maintenance+c.Reserved != c.Total {
		return fmt.Errorf("slot counts do not sum to total: %+v", c)
	}
	return nil
}

// Occupancy returns the fraction of the pool not immediately dispensable.
// A station with zero slots counts as fully occupied.
func (c SlotCounts) Occupancy() float64 {
	if c.Total == 0 {
		return 1
	}
	return 1 - float64(c.Available)/float64(c.Total)
}

// OperatingWindow describes the daily opening hours of a station.
// Open and Close use the "15:04" layout in the station's local time.
// A window with Close before Open spans midnight.
type OperatingWindow struct {
	AlwaysOpen bool   `json:"always_open"`
	Open       string `json:"open,omitempty"`
	Close      string `json:"close,omitempty"`
}

// Contains reports whether the station is open at t.
func (w OperatingWindow) Contains(t time.Time) bool {
	if w.AlwaysOpen {
		return true
	}
	open, err := time.Parse("15:04", w.Open)
	if err != nil {
		return false
	}
	closeAt, err := time.Parse("15:04", w.Close)
	if err != nil {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	o := open.Hour()*60 + open.Minute()
	c := closeAt.Hour()*60 + closeAt.Minute()
	if o == c {
		return false
	}
	if o < c {
		return minute >= o && minute < c
	}
	// window spans midnight
	return minute >= o || minute < c
}

// Validate checks that a non-always-open window carries parseable bounds.
func (w OperatingWindow) Validate() error {
	if w.AlwaysOpen {
		return nil
	}
	if _, err := time.Parse("15:04", w.Open); err != nil {
		return fmt.Errorf("invalid open time %q", w.Open)
	}
	if _, err := time.Parse("15:04", w.Close); err != nil {
		return fmt.Errorf("invalid close time %q", w.Close)
	}
	return nil
}

// Station is a battery-swap site published by the station-management feed.
// Slot counters are owned by the availability tracker once the station is
// registered; the feed remains authoritative for every other field.
type Station struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Address  string          `json:"address"`
	Location Location        `json:"location"`
	Window   OperatingWindow `json:"operating_window"`
	Rating   float64         `json:"rating"`
	Slots    SlotCounts      `json:"slots"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the station record is sound.
func (s Station) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("station id is required")
	}
	if !s.Location.Valid() {
		return fmt.Errorf("station %s: coordinates out of range", s.ID)
	}
	if err := s.Window.Validate(); err != nil {
		return fmt.Errorf("station %s: %w", s.ID, err)
	}
	if err := s.Slots.Validate(); err != nil {
		return fmt.Errorf("station %s: %w", s.ID, err)
	}
	return nil
}

// OpenAt reports whether the station dispenses batteries at t.
func (s Station) OpenAt(t time.Time) bool { return s.Window.Contains(t) }
