package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/asset-tracking/bus"
	"github.com/theoremus-urban-solutions/asset-tracking/subscription"
)

type hubHarness struct {
	bus      *bus.InProcess
	registry *subscription.Registry
	hub      *Hub
	server   *httptest.Server
}

func newHubHarness(t *testing.T, verifier TokenVerifier) *hubHarness {
	t.Helper()
	b := bus.NewInProcess(64)
	registry := subscription.NewRegistry(nil)
	opts := Options{
		HeartbeatInterval: 100 * time.Millisecond,
		HeartbeatTimeout:  5 * time.Second,
		WriteTimeout:      time.Second,
		SendBuffer:        64,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub, err := NewHub(b, registry, verifier, opts, logger)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		server.Close()
		hub.Close()
		b.Close()
	})
	return &hubHarness{bus: b, registry: registry, hub: hub, server: server}
}

func (h *hubHarness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readReply(t *testing.T, ws *websocket.Conn) controlReply {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var r controlReply
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("malformed reply %q: %v", data, err)
	}
	return r
}

func readEvent(t *testing.T, ws *websocket.Conn) bus.Event {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev bus.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("malformed event %q: %v", data, err)
	}
	return ev
}

func subscribe(t *testing.T, ws *websocket.Conn, assetType, assetID string) string {
	t.Helper()
	msg := controlMessage{Action: "subscribe", AssetType: assetType, AssetID: assetID}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
	reply := readReply(t, ws)
	if reply.Type != "subscribed" {
		t.Fatalf("expected subscribed ack, got %+v", reply)
	}
	return reply.SubscriptionID
}

func publishLocation(t *testing.T, b *bus.InProcess, assetType, assetID string) {
	t.Helper()
	ev := bus.Event{
		Type:       bus.EventLocationUpdate,
		AssetType:  assetType,
		AssetID:    assetID,
		Payload:    json.RawMessage(`{"latitude":1,"longitude":2}`),
		ServerTime: time.Now().UTC(),
	}
	if err := b.Publish(context.Background(), bus.TopicLocation, ev); err != nil {
		t.Fatal(err)
	}
}

func TestHub_RejectsBadToken(t *testing.T) {
	h := newHubHarness(t, NewStaticVerifier([]string{"good-token"}))

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 before upgrade, got %+v", resp)
	}
	if h.hub.ActiveConnections() != 0 {
		t.Error("rejected handshake must not register a connection")
	}

	t.Log("✓ authentication happens before the upgrade")
}

func TestHub_AcceptsBearerHeader(t *testing.T) {
	h := newHubHarness(t, NewStaticVerifier([]string{"good-token"}))

	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	header := http.Header{"Authorization": {"Bearer good-token"}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("bearer dial failed: %v", err)
	}
	ws.Close()

	t.Log("✓ bearer header is an accepted token carrier")
}

func TestHub_SubscribeAndReceive(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	subID := subscribe(t, ws, "vehicle", "")
	if subID == "" {
		t.Fatal("subscribed ack should carry a subscription id")
	}

	// A delivery event does not match; the vehicle event that follows does,
	// so it must be the next frame.
	publishLocation(t, h.bus, "delivery", "d1")
	publishLocation(t, h.bus, "vehicle", "v1")

	ev := readEvent(t, ws)
	if ev.AssetType != "vehicle" || ev.AssetID != "v1" {
		t.Fatalf("expected the vehicle event, got %+v", ev)
	}
	if ev.Type != bus.EventLocationUpdate {
		t.Errorf("push frame lost the event type: %+v", ev)
	}

	t.Log("✓ only matching events reach the observer")
}

func TestHub_ExactAssetFilter(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	subscribe(t, ws, "vehicle", "v2")

	publishLocation(t, h.bus, "vehicle", "v1")
	publishLocation(t, h.bus, "vehicle", "v2")

	if ev := readEvent(t, ws); ev.AssetID != "v2" {
		t.Fatalf("expected only v2, got %+v", ev)
	}

	t.Log("✓ exact filters drop other assets of the same type")
}

func TestHub_DuplicateSubscriptionsDeliverOnce(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	subscribe(t, ws, "vehicle", "")
	subscribe(t, ws, "vehicle", "v1")

	publishLocation(t, h.bus, "vehicle", "v1")

	if ev := readEvent(t, ws); ev.AssetID != "v1" {
		t.Fatalf("expected v1, got %+v", ev)
	}

	// Nothing else should arrive: one event, one frame.
	_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := ws.ReadMessage(); err == nil {
		t.Fatalf("event delivered twice: %s", data)
	}

	t.Log("✓ overlapping topics deliver a single frame")
}

func TestHub_Unsubscribe(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	subID := subscribe(t, ws, "vehicle", "")
	if err := ws.WriteJSON(controlMessage{Action: "unsubscribe", SubscriptionID: subID}); err != nil {
		t.Fatal(err)
	}
	if reply := readReply(t, ws); reply.Type != "unsubscribed" {
		t.Fatalf("expected unsubscribed ack, got %+v", reply)
	}

	publishLocation(t, h.bus, "vehicle", "v1")
	_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := ws.ReadMessage(); err == nil {
		t.Fatalf("event delivered after unsubscribe: %s", data)
	}

	t.Log("✓ unsubscribe stops delivery immediately")
}

func TestHub_UnknownActionGetsErrorReply(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	if err := ws.WriteJSON(controlMessage{Action: "teleport"}); err != nil {
		t.Fatal(err)
	}
	reply := readReply(t, ws)
	if reply.Type != "error" || !strings.Contains(reply.Error, "teleport") {
		t.Fatalf("expected an error reply naming the action, got %+v", reply)
	}

	// Malformed JSON also answers instead of killing the connection.
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if reply := readReply(t, ws); reply.Type != "error" {
		t.Fatalf("expected an error reply, got %+v", reply)
	}

	t.Log("✓ bad control messages answer with errors, not disconnects")
}

func TestHub_InvalidTopicRejected(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	if err := ws.WriteJSON(controlMessage{Action: "subscribe", AssetID: "v1"}); err != nil {
		t.Fatal(err)
	}
	if reply := readReply(t, ws); reply.Type != "error" {
		t.Fatalf("expected an error reply for assetId without assetType, got %+v", reply)
	}
	if h.registry.Len() != 0 {
		t.Error("invalid subscribe must not register anything")
	}
}

func TestHub_DisconnectCleansRegistry(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	subscribe(t, ws, "vehicle", "")
	subscribe(t, ws, "delivery", "")
	if h.registry.Len() != 2 {
		t.Fatalf("expected 2 registrations, got %d", h.registry.Len())
	}

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.registry.Len() == 0 && h.hub.ActiveConnections() == 0 {
			t.Log("✓ disconnect removes the connection and all its subscriptions")
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry not cleaned after disconnect: %d entries, %d conns",
		h.registry.Len(), h.hub.ActiveConnections())
}

func TestHub_ServerPingsClient(t *testing.T) {
	h := newHubHarness(t, AllowAllVerifier{})
	ws := h.dial(t, "")

	pinged := make(chan struct{}, 1)
	ws.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return ws.WriteMessage(websocket.PongMessage, nil)
	})
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("server never pinged within the heartbeat interval")
	}

	t.Log("✓ heartbeat pings flow on schedule")
}
