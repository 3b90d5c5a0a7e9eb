// Package api exposes the reservation core over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/geo"
	"github.com/voltswap/voltswap/core/ranker"
	"github.com/voltswap/voltswap/core/reservation"
	"github.com/voltswap/voltswap/infra/logger"
)

// Config defines the HTTP listener settings.
type Config struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Server routes rider-facing requests to the reservation core.
type Server struct {
	cfg     Config
	manager *reservation.Manager
	ranker  *ranker.Ranker
	index   *geo.Index
	tracker *availability.Tracker
	log     logger.Logger
	router  chi.Router
}

// NewServer builds the chi router around the core components.
func NewServer(cfg Config, mgr *reservation.Manager, rk *ranker.Ranker, index *geo.Index, tracker *availability.Tracker, log logger.Logger) *Server {
	cfg.SetDefaults()
	s := &Server{
		cfg:     cfg,
		manager: mgr,
		ranker:  rk,
		index:   index,
		tracker: tracker,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Route("/stations", func(r chi.Router) {
			r.Get("/rank", s.rankStations)
			r.Get("/{id}/kpis", s.stationKPIs)
		})
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", s.createReservation)
			r.Get("/", s.listReservations)
			r.Get("/{id}", s.getReservation)
			r.Post("/{id}/confirm", s.confirmReservation)
			r.Post("/{id}/cancel", s.cancelReservation)
			r.Post("/{id}/complete", s.completeReservation)
		})
	})
	s.router = r
	return s
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"stations": s.index.Len(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
