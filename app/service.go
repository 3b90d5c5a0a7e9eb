package app

import (
	"context"
	"fmt"

	"github.com/voltswap/voltswap/api"
	"github.com/voltswap/voltswap/config"
	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/geo"
	coremetrics "github.com/voltswap/voltswap/core/metrics"
	"github.com/voltswap/voltswap/core/ranker"
	"github.com/voltswap/voltswap/core/reservation"
	"github.com/voltswap/voltswap/core/scheduler"
	"github.com/voltswap/voltswap/infra/logger"
	"github.com/voltswap/voltswap/infra/metrics"
	"github.com/voltswap/voltswap/infra/mqtt"
	"github.com/voltswap/voltswap/infra/store"
	"github.com/voltswap/voltswap/internal/eventbus"
)

// Service wires the reservation core to its transports and sinks.
type Service struct {
	Manager *reservation.Manager
	Ranker  *ranker.Ranker
	Index   *geo.Index
	Tracker *availability.Tracker

	cfg       *config.Config
	bus       eventbus.EventBus
	sched     *scheduler.ExpiryScheduler
	feed      *mqtt.StationFeed
	notifyCli *mqtt.Client
	pgStore   *store.PostgresStore
	sink      coremetrics.MetricsSink
	apiServer *api.Server
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	bus := eventbus.New()
	tracker := availability.New(bus)
	index := geo.NewIndex()

	var resStore reservation.Store = reservation.NewMemoryStore()
	var pgStore *store.PostgresStore
	if cfg.Store.Enabled {
		pg, err := store.NewPostgresStore(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		resStore = pg
		pgStore = pg
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.MetricsSink
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	manager, err := reservation.NewManager(cfg.Reservation, tracker, resStore, bus, logger.New("reservation"))
	if err != nil {
		return nil, fmt.Errorf("reservation manager: %w", err)
	}
	sched := scheduler.New(manager, logger.New("scheduler"))
	manager.SetTimers(sched)

	feed, err := mqtt.NewStationFeed(cfg.MQTT, index, tracker, bus)
	if err != nil {
		return nil, fmt.Errorf("station feed: %w", err)
	}
	notifyCli, err := mqtt.NewClient(cfg.MQTT, nil)
	if err != nil {
		feed.Disconnect()
		return nil, fmt.Errorf("notifier client: %w", err)
	}

	rk := ranker.New(index, tracker, cfg.Ranker)
	svc := &Service{
		Manager:   manager,
		Ranker:    rk,
		Index:     index,
		Tracker:   tracker,
		cfg:       cfg,
		bus:       bus,
		sched:     sched,
		feed:      feed,
		notifyCli: notifyCli,
		pgStore:   pgStore,
		sink:      sink,
		log:       logg,
	}
	svc.apiServer = api.NewServer(cfg.API, manager, rk, index, tracker, logger.New("api"))
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	// Re-arm timers for holds that survived a restart.
	pending, err := s.Manager.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending reservations: %w", err)
	}
	s.sched.Restore(ctx, pending)

	if s.sink != nil {
		metrics.StartEventCollector(ctx, s.bus, s.sink)
	}
	mqtt.NewReservationNotifier(s.notifyCli, s.cfg.MQTT.EventPrefix).Start(ctx, s.bus)

	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.apiServer.Start(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases resources held by the service.
func (s *Service) Close() {
	s.sched.Close()
	s.feed.Disconnect()
	s.notifyCli.Disconnect()
	if s.pgStore != nil {
		s.pgStore.Close()
	}
	s.bus.Close()
}
