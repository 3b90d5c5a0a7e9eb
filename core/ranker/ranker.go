package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/geo"
	"github.com/voltswap/voltswap/core/model"
)

// SortMode selects the ranking order.
type SortMode string

const (
	// SortDistance orders by ascending distance, more available units first
	// among equals. The default.
	SortDistance SortMode = "distance"
	// SortRating orders by descending rating with distance as tiebreak.
	SortRating SortMode = "rating"
)

// Config defines ranking parameters.
type Config struct {
	// DefaultRadiusKm bounds proximity queries when the caller does not
	// provide a radius.
	DefaultRadiusKm float64 `json:"default_radius_km"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DefaultRadiusKm <= 0 {
		c.DefaultRadiusKm = 100
	}
}

// Filter narrows a ranking query.
type Filter struct {
	// OpenNow drops stations closed at query time.
	OpenNow bool
	// OnlyAvailable drops stations without a free unit.
	OnlyAvailable bool
}

// Query describes a rider's station search. A nil Origin means the rider has
// no location fix: ranking degrades to the feed's natural order and results
// carry no distance annotation.
type Query struct {
	Origin   *model.Location
	RadiusKm float64
	Sort     SortMode
	Filter   Filter
}

// RankedStation is a station annotated for presentation. DistanceKm is nil
// when the query had no origin; otherwise it is rounded to 0.1 km.
type RankedStation struct {
	Station    model.Station `json:"station"`
	DistanceKm *float64      `json:"distance_km,omitempty"`
}

// Ranker composes the geo index and the availability tracker into a sorted,
// filtered station list. Reads are snapshot-consistent but deliberately not
// transactional with concurrent reservations: a booking may still fail with
// no availability after a station ranked first.
type Ranker struct {
	index   *geo.Index
	tracker *availability.Tracker
	cfg     Config

	now func() time.Time
}

// New creates a Ranker.
func New(index *geo.Index, tracker *availability.Tracker, cfg Config) *Ranker {
	cfg.SetDefaults()
	return &Ranker{index: index, tracker: tracker, cfg: cfg, now: time.Now}
}

func roundTenth(d float64) float64 { return math.Round(d*10) / 10 }

// Rank returns the stations matching the query, ordered per its sort mode.
// It has no side effects.
func (r *Ranker) Rank(q Query) []RankedStation {
	var out []RankedStation
	if q.Origin != nil {
		radius := q.RadiusKm
		if radius <= 0 {
			radius = r.cfg.DefaultRadiusKm
		}
		for _, hit := range r.index.Nearby(*q.Origin, radius) {
			if rs, ok := r.annotate(hit.Station, q.Filter); ok {
				d := roundTenth(hit.DistanceKm)
				rs.DistanceKm = &d
				out = append(out, rs)
			}
		}
	} else {
		for _, st := range r.index.All() {
			if rs, ok := r.annotate(st, q.Filter); ok {
				out = append(out, rs)
			}
		}
	}
	r.order(out, q)
	return out
}

// annotate refreshes the station's slot counters from the tracker and applies
// the filter.
func (r *Ranker) annotate(st model.Station, f Filter) (RankedStation, bool) {
	if counts, ok := r.tracker.Snapshot(st.ID); ok {
		st.Slots = counts
	}
	if f.OnlyAvailable && st.Slots.Available <= 0 {
		return RankedStation{}, false
	}
	if f.OpenNow && !st.OpenAt(r.now()) {
		return RankedStation{}, false
	}
	return RankedStation{Station: st}, true
}

func (r *Ranker) order(list []RankedStation, q Query) {
	switch {
	case q.Sort == SortRating:
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i], list[j]
			if a.Station.Rating != b.Station.Rating {
				return a.Station.Rating > b.Station.Rating
			}
			if a.DistanceKm != nil && b.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm {
				return *a.DistanceKm < *b.DistanceKm
			}
			return a.Station.ID < b.Station.ID
		})
	case q.Origin != nil:
		sort.SliceStable(list, func(i, j int) bool {
			a, b := list[i], list[j]
			if *a.DistanceKm != *b.DistanceKm {
				return *a.DistanceKm < *b.DistanceKm
			}
			if a.Station.Slots.Available != b.Station.Slots.Available {
				return a.Station.Slots.Available > b.Station.Slots.Available
			}
			return a.Station.ID < b.Station.ID
		})
	default:
		// No origin and no rating sort: keep the feed's natural order.
	}
}
