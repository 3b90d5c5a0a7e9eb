// Package scheduler implements the expiry timer service for reservations.
// It keeps one pending one-shot timer per reservation id and re-arms timers
// from the store after a restart. Firing is delegated to the reservation
// manager, whose expire operation is idempotent, so a timer firing after a
// disarm is harmless.
package scheduler
