package reservation

import "fmt"

// Config defines the reservation policy.
type Config struct {
	// MinHoldMinutes and MaxHoldMinutes bound the hold window a rider may
	// request.
	MinHoldMinutes int `json:"min_hold_minutes"`
	MaxHoldMinutes int `json:"max_hold_minutes"`
	// SessionMinutes re-arms a longer timer when a reservation is confirmed
	// at the kiosk, bounding the swap session. Zero leaves a confirmed
	// reservation open until completed.
	SessionMinutes int `json:"session_minutes"`
}

// SetDefaults applies the default policy bounds.
func (c *Config) SetDefaults() {
	if c.MinHoldMinutes == 0 {
		c.MinHoldMinutes = 5
	}
	if c.MaxHoldMinutes == 0 {
		c.MaxHoldMinutes = 120
	}
}

// Validate checks the policy for consistency.
func (c Config) Validate() error {
	if c.MinHoldMinutes <= 0 {
		return fmt.Errorf("min_hold_minutes must be positive")
	}
	if c.MaxHoldMinutes < c.MinHoldMinutes {
		return fmt.Errorf("max_hold_minutes must be >= min_hold_minutes")
	}
	if c.SessionMinutes < 0 {
		return fmt.Errorf("session_minutes must not be negative")
	}
	return nil
}
