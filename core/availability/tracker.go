package availability

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voltswap/voltswap/core/events"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/internal/eventbus"
)

// ErrNoAvailability is returned when a station has no free unit to reserve.
var ErrNoAvailability = errors.New("no battery available")

// ErrUnknownStation is returned for operations on an unregistered station.
var ErrUnknownStation = errors.New("unknown station")

// ErrNoReservedUnits is returned when a release or consume would drive the
// reserved counter negative.
var ErrNoReservedUnits = errors.New("no reserved units to release")

// Tracker owns the slot counters of every registered station. All counter
// arithmetic happens under a per-station lock so that check-and-decrement is
// a single atomic unit.
type Tracker struct {
	mu       sync.RWMutex
	stations map[string]*entry
	bus      eventbus.EventBus
}

type entry struct {
	mu     sync.Mutex
	counts model.SlotCounts
}

// New creates an empty Tracker. The bus is optional; when set, every counter
// change is published as an events.AvailabilityEvent.
func New(bus eventbus.EventBus) *Tracker {
	return &Tracker{stations: make(map[string]*entry), bus: bus}
}

func (t *Tracker) publish(stationID, reason string, counts model.SlotCounts) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(events.AvailabilityEvent{
		StationID: stationID,
		Counts:    counts,
		Reason:    reason,
		Time:      time.Now(),
	})
}

// Upsert applies a station-feed update. For a new station the feed counts are
// taken as-is. For a known station the reserved counter is owned by this
// tracker and preserved: the feed reports total, charging and maintenance,
// and the free count is derived from them. An update that would shrink the
// pool below the currently held units is rejected.
func (t *Tracker) Upsert(st model.Station) (bool, error) {
	if err := st.Slots.Validate(); err != nil {
		return false, err
	}
	t.mu.Lock()
	e, ok := t.stations[st.ID]
	if !ok {
		e = &entry{}
		t.stations[st.ID] = e
	}
	t.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok {
		e.counts = st.Slots
		t.publish(st.ID, "feed_register", e.counts)
		return true, nil
	}
	reserved := e.counts.Reserved
	free := st.Slots.Total - st.Slots.Charging - st.Slots.Maintenance - reserved
	if free < 0 {
		return false, fmt.Errorf("station %s: feed update leaves %d reserved units without slots", st.ID, -free)
	}
	e.counts = model.SlotCounts{
		Total:       st.Slots.Total,
		Available:   free,
		Charging:    st.Slots.Charging,
		Maintenance: st.Slots.Maintenance,
		Reserved:    reserved,
	}
	t.publish(st.ID, "feed_update", e.counts)
	return false, nil
}

func (t *Tracker) lookup(stationID string) (*entry, error) {
	t.mu.RLock()
	e, ok := t.stations[stationID]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("station %s: %w", stationID, ErrUnknownStation)
	}
	return e, nil
}

// TryReserve atomically moves one unit from available to reserved.
// It fails with ErrNoAvailability when no free unit exists and performs no
// mutation in that case.
func (t *Tracker) TryReserve(stationID string) error {
	e, err := t.lookup(stationID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counts.Available <= 0 {
		return fmt.Errorf("station %s: %w", stationID, ErrNoAvailability)
	}
	e.counts.Available--
	e.counts.Reserved++
	t.publish(stationID, "reserve", e.counts)
	return nil
}

// Release returns one reserved unit to the available pool. Used by cancel
// and expiry.
func (t *Tracker) Release(stationID string) error {
	e, err := t.lookup(stationID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counts.Reserved <= 0 {
		return fmt.Errorf("station %s: %w", stationID, ErrNoReservedUnits)
	}
	e.counts.Reserved--
	e.counts.Available++
	t.publish(stationID, "release", e.counts)
	return nil
}

// Consume removes one reserved unit from the pool entirely. Used when a
// reservation completes: the battery was dispensed, so the unit is gone until
// the station feed reports the swapped-in battery as charging.
func (t *Tracker) Consume(stationID string) error {
	e, err := t.lookup(stationID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.counts.Reserved <= 0 {
		return fmt.Errorf("station %s: %w", stationID, ErrNoReservedUnits)
	}
	e.counts.Reserved--
	e.counts.Total--
	t.publish(stationID, "consume", e.counts)
	return nil
}

// Snapshot returns the current counters of a station.
func (t *Tracker) Snapshot(stationID string) (model.SlotCounts, bool) {
	t.mu.RLock()
	e, ok := t.stations[stationID]
	t.mu.RUnlock()
	if !ok {
		return model.SlotCounts{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts, true
}

// SnapshotAll returns the counters of every registered station.
func (t *Tracker) SnapshotAll() map[string]model.SlotCounts {
	t.mu.RLock()
	ids := make([]string, 0, len(t.stations))
	for id := range t.stations {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	out := make(map[string]model.SlotCounts, len(ids))
	for _, id := range ids {
		if c, ok := t.Snapshot(id); ok {
			out[id] = c
		}
	}
	return out
}
