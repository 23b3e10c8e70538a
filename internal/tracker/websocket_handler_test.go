package tracker

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flight-tracker/internal/flight"
	"github.com/yegors/flight-tracker/internal/websocket"
	"github.com/yegors/flight-tracker/pkg/logger"
)

type staticQueue struct {
	data []byte
}

func (q staticQueue) LatestMessage() ([]byte, bool) {
	return q.data, q.data != nil
}

func newTestHandler(queue QueueFeed) (*WebSocketHandler, *Service, *fakeSource) {
	source := newSource()
	svc := NewService(Config{PollInterval: time.Hour}, source, logger.NewNop())
	return NewWebSocketHandler(svc, queue, logger.NewNop()), svc, source
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHandleSubscribe(t *testing.T) {
	h, svc, _ := newTestHandler(nil)
	defer svc.Stop()
	a := newObserver("a")

	err := h.handle(a, flight.MessageTypeSubscribe, []byte(`{
		"type": "subscribe-flight",
		"flightNumber": "sk001",
		"flightData": {"status": "scheduled", "departure": {"gate": "A1"}, "arrival": {}}
	}`))
	require.NoError(t, err)

	entry, ok := svc.Registry().Entry("SK001")
	require.True(t, ok)
	require.NotNil(t, entry.Snapshot)
	assert.Equal(t, "A1", entry.Snapshot.Departure.Gate)

	require.Len(t, a.received(), 1)
	assert.Equal(t, map[string]any{
		"type":         "subscription-confirmed",
		"flightNumber": "SK001",
	}, decode(t, a.received()[0]))
}

func TestHandleUnsubscribe(t *testing.T) {
	h, svc, _ := newTestHandler(nil)
	defer svc.Stop()
	a := newObserver("a")

	require.NoError(t, h.handle(a, flight.MessageTypeSubscribe, []byte(`{"type":"subscribe-flight","flightNumber":"SK001"}`)))
	require.NoError(t, h.handle(a, flight.MessageTypeUnsubscribe, []byte(`{"type":"unsubscribe-flight","flightNumber":"SK001"}`)))

	assert.False(t, svc.Registry().Has("SK001"))
	assert.False(t, svc.Poller().Running())

	msgs := a.received()
	require.Len(t, msgs, 2)
	assert.Equal(t, "unsubscription-confirmed", decode(t, msgs[1])["type"])
}

func TestHandleIgnoresBadInput(t *testing.T) {
	h, svc, _ := newTestHandler(nil)
	defer svc.Stop()
	a := newObserver("a")

	assert.NoError(t, h.handle(a, "ping", []byte(`{"type":"ping"}`)))
	assert.Error(t, h.handle(a, flight.MessageTypeSubscribe, []byte(`{"type":"subscribe-flight","flightNumber":42}`)))
	assert.ErrorIs(t, h.handle(a, flight.MessageTypeSubscribe, []byte(`{"type":"subscribe-flight"}`)), errMissingFlightNumber)
	assert.ErrorIs(t, h.handle(a, flight.MessageTypeUnsubscribe, []byte(`{"type":"unsubscribe-flight","flightNumber":"  "}`)), errMissingFlightNumber)

	assert.Zero(t, svc.Registry().Len())
	assert.Empty(t, a.received(), "no error payloads are sent")
}

func TestConnectPushesQueueStatus(t *testing.T) {
	queued := []byte(`{"type":"queue-update","data":{"minutes":10}}`)
	h, svc, _ := newTestHandler(staticQueue{data: queued})
	defer svc.Stop()
	a := newObserver("a")

	h.connected(a)
	require.Len(t, a.received(), 1)
	assert.Equal(t, queued, a.received()[0])

	empty, svc2, _ := newTestHandler(staticQueue{})
	defer svc2.Stop()
	b := newObserver("b")
	empty.connected(b)
	assert.Empty(t, b.received())
}

func TestWebSocketEndToEnd(t *testing.T) {
	h, svc, source := newTestHandler(nil)
	defer svc.Stop()

	server := websocket.NewServer(logger.NewNop())
	server.SetMessageHandler(h)
	server.SetConnectionHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(ctx)

	ts := httptest.NewServer(server)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readJSON := func() map[string]any {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		return decode(t, data)
	}

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`{
		"type": "subscribe-flight",
		"flightNumber": "SK001",
		"flightData": {"status": "scheduled", "departure": {"gate": "A1"}, "arrival": {}}
	}`)))
	assert.Equal(t, "subscription-confirmed", readJSON()["type"])

	source.set("SK001", &flight.Snapshot{
		Status:    "scheduled",
		Departure: flight.Point{Gate: "C12"},
	}, nil)
	svc.Poller().Cycle(context.Background())

	update := readJSON()
	assert.Equal(t, "flight-update", update["type"])
	assert.Equal(t, "SK001", update["flightNumber"])
	changes, ok := update["changes"].([]any)
	require.True(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, "C12", changes[0].(map[string]any)["newValue"])

	// closing the socket drops the subscription
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return svc.Registry().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
