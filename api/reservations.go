package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/core/reservation"
)

type createReservationRequest struct {
	UserID      string `json:"user_id"`
	StationID   string `json:"station_id"`
	VehicleID   string `json:"vehicle_id,omitempty"`
	HoldMinutes int    `json:"hold_minutes"`
}

// reservationView projects a reservation for API consumers: the status is the
// effective one and the remaining hold time is precomputed.
type reservationView struct {
	model.Reservation
	Status           model.Status `json:"status"`
	RemainingSeconds int          `json:"remaining_seconds"`
}

func viewOf(r model.Reservation) reservationView {
	now := time.Now()
	return reservationView{
		Reservation:      r,
		Status:           r.EffectiveStatus(now),
		RemainingSeconds: int(r.Remaining(now).Seconds()),
	}
}

func viewsOf(rs []model.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, viewOf(r))
	}
	return out
}

// writeReservationError maps core errors onto HTTP statuses.
func writeReservationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, availability.ErrUnknownStation):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, availability.ErrNoAvailability):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrInvalidTransition), errors.Is(err, reservation.ErrNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// createReservation handles POST /api/reservations.
func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.StationID == "" {
		writeError(w, http.StatusBadRequest, "user_id and station_id are required")
		return
	}

	res, err := s.manager.Create(r.Context(), reservation.CreateRequest{
		UserID:      req.UserID,
		StationID:   req.StationID,
		VehicleID:   req.VehicleID,
		HoldMinutes: req.HoldMinutes,
	})
	if err != nil {
		writeReservationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(res))
}

// getReservation handles GET /api/reservations/{id}.
func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeReservationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res))
}

// listReservations handles GET /api/reservations?user_id=...
func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	res, err := s.manager.ListForUser(r.Context(), userID)
	if err != nil {
		writeReservationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewsOf(res))
}

// confirmReservation handles POST /api/reservations/{id}/confirm.
func (s *Server) confirmReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeReservationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res))
}

// cancelReservation handles POST /api/reservations/{id}/cancel.
func (s *Server) cancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Cancel(r.Context(), chi.URLParam(r, "id"), "rider")
	if err != nil {
		writeReservationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res))
}

// completeReservation handles POST /api/reservations/{id}/complete.
func (s *Server) completeReservation(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeReservationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res))
}
