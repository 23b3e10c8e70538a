package aviationstack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flight-tracker/pkg/logger"
)

const sampleResponse = `{
  "pagination": {"limit": 100, "offset": 0, "count": 1, "total": 1},
  "data": [{
    "flight_date": "2026-10-14",
    "flight_status": "scheduled",
    "departure": {
      "airport": "Oslo Gardermoen", "iata": "OSL", "terminal": null, "gate": "C12",
      "delay": 17, "scheduled": "2026-10-14T08:00:00+00:00", "estimated": "2026-10-14T08:17:00+00:00", "actual": null
    },
    "arrival": {
      "airport": "Kastrup", "iata": "CPH", "terminal": 3, "gate": null,
      "delay": null, "scheduled": "2026-10-14T09:10:00+00:00", "estimated": "2026-10-14T09:10:00+00:00", "actual": null
    },
    "airline": {"name": "SAS", "iata": "SK"},
    "flight": {"number": "1", "iata": "SK1", "icao": "SAS1"},
    "aircraft": {"registration": "LN-RKF", "iata": "A320", "icao24": "47A1B2"}
  }]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, key string) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:         server.URL,
		AccessKey:       key,
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, logger.NewNop())
}

func TestFetchFlight(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/flights", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("access_key"))
		assert.Equal(t, "SK1", r.URL.Query().Get("flight_iata"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}, "secret")

	snap, err := client.FetchFlight(context.Background(), "sk1")
	require.NoError(t, err)

	assert.Equal(t, "SK1", snap.FlightNumber)
	assert.Equal(t, "scheduled", snap.Status)
	assert.Equal(t, "SAS", snap.Airline)
	assert.Equal(t, "C12", snap.Departure.Gate)
	assert.Equal(t, "", snap.Departure.Terminal)
	require.NotNil(t, snap.Departure.Delay)
	assert.Equal(t, 17, *snap.Departure.Delay)
	assert.Equal(t, "3", snap.Arrival.Terminal)
	assert.Nil(t, snap.Arrival.Delay)
	assert.Equal(t, "2026-10-14T09:10:00+00:00", snap.Arrival.Estimated)
	require.NotNil(t, snap.Aircraft)
	assert.Equal(t, "LN-RKF", snap.Aircraft.Registration)
}

func TestFetchFlightMisconfigured(t *testing.T) {
	var calls atomic.Int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}

	for _, key := range []string{"", "YOUR_API_KEY", "  changeme "} {
		client := newTestClient(t, handler, key)
		assert.False(t, client.Configured())
		_, err := client.FetchFlight(context.Background(), "SK1")
		assert.ErrorIs(t, err, ErrMisconfigured, key)
	}
	assert.Zero(t, calls.Load(), "no request should be made without a key")
}

func TestFetchFlightRejectedKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_access_key","message":"You have not supplied a valid API Access Key."}}`))
	}, "bogus")

	_, err := client.FetchFlight(context.Background(), "SK1")
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestFetchFlightNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, "secret")

	_, err := client.FetchFlight(context.Background(), "XX999")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = client.FetchFlight(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchFlightUpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, "secret")

	_, err := client.FetchFlight(context.Background(), "SK1")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetchFlightBadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}, "secret")

	_, err := client.FetchFlight(context.Background(), "SK1")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, "secret")

	for i := 0; i < 2; i++ {
		_, err := client.FetchFlight(context.Background(), "SK1")
		require.ErrorIs(t, err, ErrUnreachable)
	}

	// breaker is open now: request is rejected without reaching the server
	_, err := client.FetchFlight(context.Background(), "SK1")
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoDataDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, "secret")

	for i := 0; i < 5; i++ {
		_, err := client.FetchFlight(context.Background(), "SK1")
		require.True(t, errors.Is(err, ErrNoData))
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:           server.URL,
		AccessKey:         "secret",
		RequestsPerSecond: 0.001,
		Burst:             1,
	}, logger.NewNop())

	_, err := client.FetchFlight(context.Background(), "SK1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.FetchFlight(ctx, "SK1")
	assert.ErrorIs(t, err, ErrUnreachable)
}
