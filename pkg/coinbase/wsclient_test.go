package coinbase

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// newTickerServer upgrades incoming connections, records the subscribe frame
// and replies with canned ticker frames.
func newTickerServer(t *testing.T, ticks []TickerMessage, gotSub chan<- subscribeMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("reading subscribe frame: %v", err)
			return
		}
		select {
		case gotSub <- sub:
		default:
		}

		for _, tick := range ticks {
			if err := conn.WriteJSON(tick); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// go test -v --run TestConnectSubscribesAndDeliversTicks
func TestConnectSubscribesAndDeliversTicks(t *testing.T) {
	gotSub := make(chan subscribeMessage, 1)
	srv := newTickerServer(t, []TickerMessage{
		{Type: "ticker", ProductID: "BTC-USD", Price: "22000.15"},
	}, gotSub)
	defer srv.Close()

	client := NewClient(wsURL(srv), 5*time.Second, zap.NewNop())
	defer client.Disconnect()

	frames := make(chan []byte, 4)
	client.SetMessageHandler(func(msg []byte) { frames <- msg })

	if err := client.Connect([]string{"BTC-USD", "ETH-USD"}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if got := client.State(); got != StateSubscribed {
		t.Errorf("expected subscribed state, got %v", got)
	}

	select {
	case sub := <-gotSub:
		if sub.Type != "subscribe" {
			t.Errorf("unexpected frame type: %q", sub.Type)
		}
		if len(sub.Channels) != 1 || sub.Channels[0].Name != "ticker" {
			t.Fatalf("unexpected channels: %+v", sub.Channels)
		}
		if len(sub.Channels[0].ProductIDs) != 2 || sub.Channels[0].ProductIDs[0] != "BTC-USD" {
			t.Errorf("unexpected product ids: %+v", sub.Channels[0].ProductIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscribe frame")
	}

	select {
	case raw := <-frames:
		var tick TickerMessage
		if err := json.Unmarshal(raw, &tick); err != nil {
			t.Fatalf("bad tick frame: %v", err)
		}
		if tick.ProductID != "BTC-USD" || tick.Price != "22000.15" {
			t.Errorf("unexpected tick: %+v", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received a tick")
	}
}

// go test -v --run TestSingleReconnectTimer
func TestSingleReconnectTimer(t *testing.T) {
	client := NewClient("ws://example.invalid", time.Hour, zap.NewNop())
	client.mu.Lock()
	client.state = StateSubscribed
	client.gen = 1
	client.mu.Unlock()

	client.handleDisconnect(1, errors.New("connection reset"))

	client.mu.Lock()
	first := client.reconnectTimer
	client.mu.Unlock()
	if first == nil {
		t.Fatal("expected a pending reconnect timer after close")
	}

	// A second close event for the same connection, before the timer fires,
	// must not arm a second timer.
	client.handleDisconnect(1, errors.New("connection reset again"))

	client.mu.Lock()
	second := client.reconnectTimer
	client.mu.Unlock()
	if second != first {
		t.Error("second close event replaced or duplicated the pending timer")
	}

	client.Disconnect()
	client.mu.Lock()
	if client.reconnectTimer != nil {
		t.Error("teardown left a pending reconnect timer")
	}
	client.mu.Unlock()
}

// go test -v --run TestReconnectKeepsRetrying
func TestReconnectKeepsRetrying(t *testing.T) {
	var dials atomic.Int32
	client := NewClient("ws://example.invalid", 10*time.Millisecond, zap.NewNop())
	client.dial = func(url string) (*websocket.Conn, *http.Response, error) {
		dials.Add(1)
		return nil, nil, errors.New("dial refused")
	}
	defer client.Disconnect()

	if err := client.Connect([]string{"BTC-USD"}); err == nil {
		t.Fatal("expected the first dial to fail")
	}

	// Repeated failures retry indefinitely on the fixed interval.
	deadline := time.After(2 * time.Second)
	for dials.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 dial attempts, got %d", dials.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	client.Disconnect()
	settled := dials.Load()
	time.Sleep(50 * time.Millisecond)
	if got := dials.Load(); got != settled {
		t.Errorf("disconnect did not stop the retry loop: %d -> %d", settled, got)
	}
}

// go test -v --run TestDisconnectIdempotent
func TestDisconnectIdempotent(t *testing.T) {
	client := NewClient("ws://example.invalid", time.Second, zap.NewNop())
	client.Disconnect()
	client.Disconnect()

	if got := client.State(); got != StateDisconnected {
		t.Errorf("expected disconnected, got %v", got)
	}
}

func TestProductID(t *testing.T) {
	if got := ProductID("btc"); got != "BTC-USD" {
		t.Errorf("unexpected product id: %q", got)
	}
	if got := ProductID("ETH"); got != "ETH-USD" {
		t.Errorf("unexpected product id: %q", got)
	}
}
