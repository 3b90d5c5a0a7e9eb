package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/voltswap/voltswap/core/metrics"
	"github.com/voltswap/voltswap/infra/logger"
)

// InfluxSink writes reservation and availability events to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordReservation writes the transition as a line protocol event.
func (s *InfluxSink) RecordReservation(rec coremetrics.ReservationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("reservation_transition").
		AddTag("station_id", rec.StationID).
		AddTag("status", rec.Status.String()).
		AddTag("actor", rec.Actor).
		AddTag("component", "reservation_manager").
		AddField("reservation_id", rec.ReservationID).
		AddField("user_id", rec.UserID).
		AddField("previous", rec.Previous.String()).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAvailability writes a snapshot of the station's slot counters.
func (s *InfluxSink) RecordAvailability(rec coremetrics.AvailabilityRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("station_slots").
		AddTag("station_id", rec.StationID).
		AddTag("reason", rec.Reason).
		AddTag("component", "availability_tracker").
		AddField("total", rec.Counts.Total).
		AddField("available", rec.Counts.Available).
		AddField("charging", rec.Counts.Charging).
		AddField("maintenance", rec.Counts.Maintenance).
		AddField("reserved", rec.Counts.Reserved).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStationFeed persists a feed upsert for liveness dashboards.
func (s *InfluxSink) RecordStationFeed(rec coremetrics.FeedRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("station_feed_event").
		AddTag("station_id", rec.StationID).
		AddTag("created", strconv.FormatBool(rec.Created)).
		AddTag("component", "station_feed").
		AddField("count", 1).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordExpiryLag writes the scheduler's expiry delay.
func (s *InfluxSink) RecordExpiryLag(lag time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("reservation_expiry_lag").
		AddTag("component", "expiry_scheduler").
		AddField("lag_ms", lag.Milliseconds()).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}
