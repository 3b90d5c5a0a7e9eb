package mqtt

import (
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/events"
	"github.com/voltswap/voltswap/core/geo"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/infra/logger"
	"github.com/voltswap/voltswap/internal/eventbus"
)

// StationFeed consumes the station-management feed and keeps the geo index
// and availability tracker current. The feed is authoritative for every
// station field except the reserved counter, which the tracker owns.
type StationFeed struct {
	client  *Client
	index   *geo.Index
	tracker *availability.Tracker
	bus     eventbus.EventBus
	log     logger.Logger
}

// NewStationFeed connects to the broker and subscribes to the station topic.
// The bus is optional.
func NewStationFeed(cfg Config, index *geo.Index, tracker *availability.Tracker, bus eventbus.EventBus) (*StationFeed, error) {
	cfg.SetDefaults()
	f := &StationFeed{
		index:   index,
		tracker: tracker,
		bus:     bus,
		log:     logger.New("station_feed"),
	}
	client, err := NewClient(cfg, func(c *Client) {
		if err := c.Subscribe(cfg.StationTopic, "station", f.onStation); err != nil {
			f.log.Errorf("subscribe %s: %v", cfg.StationTopic, err)
		}
	})
	if err != nil {
		return nil, err
	}
	f.client = client
	return f, nil
}

func (f *StationFeed) onStation(_ paho.Client, msg paho.Message) {
	var st model.Station
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		f.log.Errorf("decode station on %s: %v", msg.Topic(), err)
		return
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	f.Apply(st)
}

// Apply ingests one station record as if it arrived on the feed.
func (f *StationFeed) Apply(st model.Station) {
	if err := st.Validate(); err != nil {
		f.log.Warnf("rejecting station update: %v", err)
		return
	}
	created, err := f.tracker.Upsert(st)
	if err != nil {
		f.log.Warnf("rejecting station update for %s: %v", st.ID, err)
		return
	}
	f.index.Upsert(st)
	f.log.Debugf("station %s %s", st.ID, upsertVerb(created))
	if f.bus != nil {
		f.bus.Publish(events.StationFeedEvent{Station: st, Created: created, Time: time.Now()})
	}
}

// Disconnect closes the broker connection.
func (f *StationFeed) Disconnect() {
	if f.client != nil {
		f.client.Disconnect()
	}
}

func upsertVerb(created bool) string {
	if created {
		return "registered"
	}
	return "updated"
}
