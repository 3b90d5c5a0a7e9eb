package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/geo"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/core/ranker"
	"github.com/voltswap/voltswap/core/reservation"
	"github.com/voltswap/voltswap/infra/logger"
)

func testStation(id string, lat, lng, rating float64, free int) model.Station {
	return model.Station{
		ID:       id,
		Name:     "Station " + id,
		Location: model.Location{Lat: lat, Lng: lng},
		Window:   model.OperatingWindow{AlwaysOpen: true},
		Rating:   rating,
		Slots:    model.SlotCounts{Total: free + 1, Available: free, Charging: 1},
	}
}

func newTestServer(t *testing.T, stations ...model.Station) (*httptest.Server, *availability.Tracker) {
	t.Helper()
	index := geo.NewIndex()
	tracker := availability.New(nil)
	for _, st := range stations {
		index.Upsert(st)
		_, err := tracker.Upsert(st)
		require.NoError(t, err)
	}
	mgr, err := reservation.NewManager(reservation.Config{}, tracker, reservation.NewMemoryStore(), nil, logger.NopLogger{})
	require.NoError(t, err)
	rk := ranker.New(index, tracker, ranker.Config{})
	srv := NewServer(Config{}, mgr, rk, index, tracker, logger.NopLogger{})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, tracker
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, testStation("st-1", 48.85, 2.35, 4, 3))
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"stations":1`)
}

func TestRankStationsByDistance(t *testing.T) {
	ts, _ := newTestServer(t,
		testStation("st-far", 48.95, 2.35, 3, 2),
		testStation("st-near", 48.86, 2.35, 5, 2),
	)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/stations/rank?lat=48.85&lng=2.35", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ranked []ranker.RankedStation
	require.NoError(t, json.Unmarshal(body, &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "st-near", ranked[0].Station.ID)
	require.NotNil(t, ranked[0].DistanceKm)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/stations/rank?lat=48.85&lng=2.35&sort=rating", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &ranked))
	assert.Equal(t, "st-near", ranked[0].Station.ID)
}

func TestRankStationsWithoutOrigin(t *testing.T) {
	ts, _ := newTestServer(t,
		testStation("st-b", 48.95, 2.35, 3, 2),
		testStation("st-a", 48.86, 2.35, 5, 2),
	)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/stations/rank", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ranked []ranker.RankedStation
	require.NoError(t, json.Unmarshal(body, &ranked))
	require.Len(t, ranked, 2)
	// Feed order, no distance annotation.
	assert.Equal(t, "st-b", ranked[0].Station.ID)
	assert.Nil(t, ranked[0].DistanceKm)
}

func TestRankStationsRejectsBadQuery(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, q := range []string{
		"?lat=abc&lng=2.3",
		"?lat=48.85",
		"?lat=48.85&lng=2.35&radius_km=-2",
		"?lat=48.85&lng=2.35&sort=alphabetical",
		"?lat=120&lng=2.35",
	} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/stations/rank"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	ts, tracker := newTestServer(t, testStation("st-1", 48.85, 2.35, 4, 2))

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/reservations", createReservationRequest{
		UserID: "u-1", StationID: "st-1", HoldMinutes: 30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created reservationView
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Greater(t, created.RemainingSeconds, 0)

	counts, _ := tracker.Snapshot("st-1")
	assert.Equal(t, 1, counts.Available)

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reservations/%s/confirm", ts.URL, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reservations/%s/complete", ts.URL, created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var done reservationView
	require.NoError(t, json.Unmarshal(body, &done))
	assert.Equal(t, model.StatusCompleted, done.Status)

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reservations/%s/cancel", ts.URL, created.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/reservations?user_id=u-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []reservationView
	require.NoError(t, json.Unmarshal(body, &mine))
	assert.Len(t, mine, 1)
}

func TestCreateReservationErrors(t *testing.T) {
	ts, _ := newTestServer(t, testStation("st-1", 48.85, 2.35, 4, 1))

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/reservations", createReservationRequest{
		UserID: "u-1", StationID: "st-1", HoldMinutes: 2,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/reservations", createReservationRequest{
		UserID: "u-1", StationID: "ghost", HoldMinutes: 30,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/reservations", createReservationRequest{
		UserID: "u-1", StationID: "st-1", HoldMinutes: 30,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/reservations", createReservationRequest{
		UserID: "u-2", StationID: "st-1", HoldMinutes: 30,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/reservations/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/reservations", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStationKPIs(t *testing.T) {
	ts, _ := newTestServer(t, testStation("st-1", 48.85, 2.35, 4, 3))

	var ids []string
	for i := 0; i < 3; i++ {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/reservations", createReservationRequest{
			UserID: fmt.Sprintf("u-%d", i), StationID: "st-1", HoldMinutes: 20 + 10*i,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var v reservationView
		require.NoError(t, json.Unmarshal(body, &v))
		ids = append(ids, v.ID)
	}
	// One completes, one cancels, one stays pending.
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reservations/%s/confirm", ts.URL, ids[0]), nil)
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reservations/%s/complete", ts.URL, ids[0]), nil)
	doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/reservations/%s/cancel", ts.URL, ids[1]), nil)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/stations/st-1/kpis", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var kpis stationKPIResponse
	require.NoError(t, json.Unmarshal(body, &kpis))
	assert.Equal(t, "st-1", kpis.StationID)
	assert.Equal(t, 1, kpis.Reservations["completed"])
	assert.Equal(t, 1, kpis.Reservations["cancelled"])
	assert.Equal(t, 1, kpis.Reservations["pending"])
	assert.InDelta(t, 30, kpis.MeanHoldMinutes, 1e-9)
	assert.InDelta(t, 0.5, kpis.CompletionRate, 1e-9)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/stations/ghost/kpis", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
