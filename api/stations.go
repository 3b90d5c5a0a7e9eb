package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/stat"

	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/core/ranker"
)

// rankStations handles GET /api/stations/rank.
// Query parameters: lat, lng (both or neither), radius_km, sort
// (distance|rating), open_now, only_available.
func (s *Server) rankStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var origin *model.Location
	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr != "" || lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			writeError(w, http.StatusBadRequest, "lat and lng must both be valid decimal degrees")
			return
		}
		loc := model.Location{Lat: lat, Lng: lng}
		if !loc.Valid() {
			writeError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}
		origin = &loc
	}

	var radius float64
	if v := q.Get("radius_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "radius_km must be a positive number")
			return
		}
		radius = f
	}

	sort := ranker.SortDistance
	switch q.Get("sort") {
	case "", "distance":
	case "rating":
		sort = ranker.SortRating
	default:
		writeError(w, http.StatusBadRequest, "sort must be distance or rating")
		return
	}

	ranked := s.ranker.Rank(ranker.Query{
		Origin:   origin,
		RadiusKm: radius,
		Sort:     sort,
		Filter: ranker.Filter{
			OpenNow:       q.Get("open_now") == "true",
			OnlyAvailable: q.Get("only_available") == "true",
		},
	})
	if ranked == nil {
		ranked = []ranker.RankedStation{}
	}
	writeJSON(w, http.StatusOK, ranked)
}

type stationKPIResponse struct {
	StationID       string         `json:"station_id"`
	Occupancy       float64        `json:"occupancy"`
	Reservations    map[string]int `json:"reservations_by_status"`
	MeanHoldMinutes float64        `json:"mean_hold_minutes"`
	HoldStdDev      float64        `json:"hold_minutes_stddev"`
	CompletionRate  float64        `json:"completion_rate"`
}

// stationKPIs handles GET /api/stations/{id}/kpis. It summarises the
// station's reservation history and current occupancy.
func (s *Server) stationKPIs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	counts, ok := s.tracker.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}

	history, err := s.manager.ListForStation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load reservation history")
		return
	}

	byStatus := map[string]int{}
	var holds []float64
	var closed, completed int
	for _, res := range history {
		byStatus[res.Status.String()]++
		holds = append(holds, float64(res.HoldMinutes))
		if res.Status.Terminal() {
			closed++
			if res.Status == model.StatusCompleted {
				completed++
			}
		}
	}

	resp := stationKPIResponse{
		StationID:    id,
		Occupancy:    counts.Occupancy(),
		Reservations: byStatus,
	}
	if len(holds) > 0 {
		resp.MeanHoldMinutes = stat.Mean(holds, nil)
		if len(holds) > 1 {
			resp.HoldStdDev = stat.StdDev(holds, nil)
		}
	}
	if closed > 0 {
		resp.CompletionRate = float64(completed) / float64(closed)
	}
	writeJSON(w, http.StatusOK, resp)
}
