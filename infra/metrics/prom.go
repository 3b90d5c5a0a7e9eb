package metrics

import (
	"time"

	coremetrics "github.com/voltswap/voltswap/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records reservation and availability events in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	available   *prometheus.GaugeVec
	reserved    *prometheus.GaugeVec
	expiryLag   prometheus.Histogram
}

// NewPromSink registers reservation metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_transitions_total",
		Help: "Total number of reservation status transitions",
	}, []string{"station_id", "status", "actor"})
	available := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_slots_available",
		Help: "Battery units immediately dispensable at a station",
	}, []string{"station_id"})
	reserved := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_slots_reserved",
		Help: "Battery units held by active reservations at a station",
	}, []string{"station_id"})
	expiryLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_expiry_lag_seconds",
		Help:    "Delay between a hold window elapsing and the expiry landing",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(available); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			available = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reserved); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reserved = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(expiryLag); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			expiryLag = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{transitions: transitions, available: available, reserved: reserved, expiryLag: expiryLag}, nil
}

// RecordReservation increments the transition counter.
func (s *PromSink) RecordReservation(rec coremetrics.ReservationRecord) error {
	s.transitions.WithLabelValues(rec.StationID, rec.Status.String(), rec.Actor).Inc()
	return nil
}

// RecordAvailability sets the per-station slot gauges.
func (s *PromSink) RecordAvailability(rec coremetrics.AvailabilityRecord) error {
	s.available.WithLabelValues(rec.StationID).Set(float64(rec.Counts.Available))
	s.reserved.WithLabelValues(rec.StationID).Set(float64(rec.Counts.Reserved))
	return nil
}

// RecordExpiryLag observes the scheduler's expiry delay.
func (s *PromSink) RecordExpiryLag(lag time.Duration) error {
	s.expiryLag.Observe(lag.Seconds())
	return nil
}
