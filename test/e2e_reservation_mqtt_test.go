package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/geo"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/core/reservation"
	"github.com/voltswap/voltswap/core/scheduler"
	"github.com/voltswap/voltswap/infra/logger"
	"github.com/voltswap/voltswap/infra/mqtt"
	"github.com/voltswap/voltswap/internal/eventbus"
)

func waitForMQTTReady(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = token.Error()
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for broker")
	}
	return lastErr
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
log_type notice
log_type information
connection_messages true
log_timestamp true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("container start: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	addr := net.JoinHostPort(host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		t.Logf("mosquitto not ready at %s: %v", addr, err)
		t.Skip("Mosquitto not ready after retries")
	}
	return cont, broker
}

func connectClient(t *testing.T, broker, id string) paho.Client {
	t.Helper()
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(id)
	cli := paho.NewClient(opts)
	var connErr error
	for i := 0; i < 5; i++ {
		token := cli.Connect()
		token.Wait()
		connErr = token.Error()
		if connErr == nil {
			return cli
		}
		t.Logf("connect attempt %d to %s: %v", i+1, broker, connErr)
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}
	t.Skip("Mosquitto not ready after retries")
	return nil
}

func TestReservationFlowWithMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	cont, broker := startMosquitto(ctx, t)
	defer func() { _ = cont.Terminate(ctx) }()

	bus := eventbus.New()
	index := geo.NewIndex()
	tracker := availability.New(bus)

	feed, err := mqtt.NewStationFeed(mqtt.Config{Broker: broker, ClientID: "feed"}, index, tracker, bus)
	if err != nil {
		t.Fatalf("station feed: %v", err)
	}
	defer feed.Disconnect()

	notifierCli, err := mqtt.NewClient(mqtt.Config{Broker: broker, ClientID: "notifier"}, nil)
	if err != nil {
		t.Fatalf("notifier client: %v", err)
	}
	defer notifierCli.Disconnect()
	notifyCtx, cancelNotify := context.WithCancel(context.Background())
	defer cancelNotify()
	mqtt.NewReservationNotifier(notifierCli, "reservations").Start(notifyCtx, bus)

	mgr, err := reservation.NewManager(reservation.Config{}, tracker, reservation.NewMemoryStore(), bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	sched := scheduler.New(mgr, logger.NopLogger{})
	defer sched.Close()
	mgr.SetTimers(sched)

	// Simulate the station-management system publishing a site.
	stationCli := connectClient(t, broker, "station-sim")
	defer stationCli.Disconnect(100)
	st := model.Station{
		ID:       "st-1",
		Name:     "Bastille",
		Location: model.Location{Lat: 48.853, Lng: 2.369},
		Window:   model.OperatingWindow{AlwaysOpen: true},
		Slots:    model.SlotCounts{Total: 4, Available: 3, Charging: 1},
	}
	payload, _ := json.Marshal(st)
	if token := stationCli.Publish("stations/st-1/status", 0, false, payload); token.Wait() && token.Error() != nil {
		t.Fatalf("publish station: %v", token.Error())
	}

	deadline := time.Now().Add(5 * time.Second)
	for index.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if index.Len() == 0 {
		t.Fatal("station never reached the index")
	}

	// Rider device listens on its notification topic.
	riderCli := connectClient(t, broker, "rider-sim")
	defer riderCli.Disconnect(100)
	var mu sync.Mutex
	var statuses []string
	if token := riderCli.Subscribe("reservations/u-1/events", 0, func(_ paho.Client, m paho.Message) {
		var notice struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(m.Payload(), &notice); err != nil {
			return
		}
		mu.Lock()
		statuses = append(statuses, notice.Status)
		mu.Unlock()
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe rider: %v", token.Error())
	}

	r, err := mgr.Create(ctx, reservation.CreateRequest{UserID: "u-1", StationID: "st-1", HoldMinutes: 30})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := mgr.Cancel(ctx, r.ID, "rider"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(statuses)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(statuses) < 2 || statuses[0] != "pending" || statuses[1] != "cancelled" {
		t.Fatalf("unexpected notification sequence: %v", statuses)
	}

	counts, ok := tracker.Snapshot("st-1")
	if !ok {
		t.Fatalf("station missing from tracker")
	}
	if counts.Available != 3 || counts.Reserved != 0 {
		t.Fatalf("unit not returned: %+v", counts)
	}
}
