package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trading-buddy/internal/hub"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func TestWebSocketReceivesPublishedMessages(t *testing.T) {
	srv, _, _ := testServer(t, "")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts, "/ws/market")
	defer conn.Close()

	// Wait for the subscription to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.SubscriberCount(hub.ChannelMarket) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.hub.Publish(hub.ChannelMarket, []byte(`{"type":"price"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(payload) != `{"type":"price"}` {
		t.Fatalf("unexpected payload %q", payload)
	}
}

func TestWebSocketDisconnectDeregisters(t *testing.T) {
	srv, _, _ := testServer(t, "")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts, "/ws/alerts")

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.SubscriberCount(hub.ChannelAlerts) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for srv.hub.SubscriberCount(hub.ChannelAlerts) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never deregistered after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
