package geo

import (
	"math"
	"sync"

	"github.com/voltswap/voltswap/core/model"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b model.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Index holds the station records published by the management feed and
// answers proximity queries. Insertion order is preserved so that queries
// without an origin can fall back to the feed's natural order.
type Index struct {
	mu       sync.RWMutex
	stations map[string]model.Station
	order    []string
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{stations: make(map[string]model.Station)}
}

// Upsert stores a station record and reports whether it was new.
func (i *Index) Upsert(st model.Station) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.stations[st.ID]
	if !ok {
		i.order = append(i.order, st.ID)
	}
	i.stations[st.ID] = st
	return !ok
}

// Get returns a station record by id.
func (i *Index) Get(id string) (model.Station, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	st, ok := i.stations[id]
	return st, ok
}

// All returns every station in feed order.
func (i *Index) All() []model.Station {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]model.Station, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, i.stations[id])
	}
	return out
}

// Hit is a station paired with its distance from a query origin.
type Hit struct {
	Station    model.Station
	DistanceKm float64
}

// Nearby returns all stations within radiusKm of origin, unordered.
func (i *Index) Nearby(origin model.Location, radiusKm float64) []Hit {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var hits []Hit
	for _, id := range i.order {
		st := i.stations[id]
		d := DistanceKm(origin, st.Location)
		if d <= radiusKm {
			hits = append(hits, Hit{Station: st, DistanceKm: d})
		}
	}
	return hits
}

// Len returns the number of indexed stations.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.stations)
}
