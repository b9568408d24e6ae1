package websocket

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketwire/lob/pkg/lob"
)

func newTestServer(t *testing.T) (*Server, *lob.Registry, *httptest.Server) {
	t.Helper()

	registry := lob.NewRegistry()
	registry.AddSymbol("META", 5)

	level, _ := log.ToLevel("error")
	s := NewServer(registry, log.NewTestLogger(level), DefaultConfig())
	s.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/health", s.HandleHealth)
	ts := httptest.NewServer(mux)

	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, registry, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	return string(frame)
}

func TestSubscribeEmitsSnapshot(t *testing.T) {
	_, registry, ts := newTestServer(t)

	book, _ := registry.Book("META")
	book.Add(lob.NewOrder(lob.GoodTillCancel, 1, lob.Buy, 100, 5))
	book.Add(lob.NewOrder(lob.GoodTillCancel, 2, lob.Sell, 101, 3))

	conn := dial(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:META")))

	frame := readFrame(t, conn)
	assert.Equal(t, " Bids    \t\t  Asks   \n$100:5 \t\t $101:3\n", frame)
}

func TestSubscribeUnknownSymbolIgnored(t *testing.T) {
	_, registry, ts := newTestServer(t)

	conn := dial(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:NOPE")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))

	// A valid subscribe afterwards still answers, proving the session
	// survived the ignored requests and nothing was queued for them.
	book, _ := registry.Book("META")
	book.Add(lob.NewOrder(lob.GoodTillCancel, 1, lob.Buy, 10, 1))
	book.Add(lob.NewOrder(lob.GoodTillCancel, 2, lob.Sell, 11, 1))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:META")))

	frame := readFrame(t, conn)
	assert.True(t, strings.HasPrefix(frame, " Bids    \t\t  Asks   \n"))
	assert.Contains(t, frame, "$10:1 \t\t $11:1\n")
}

func TestPublishTradesFanOut(t *testing.T) {
	s, _, ts := newTestServer(t)

	subscribed := dial(t, ts)
	require.NoError(t, subscribed.WriteMessage(websocket.TextMessage, []byte("subscribe:META")))
	readFrame(t, subscribed) // snapshot

	other := dial(t, ts)
	require.NoError(t, other.WriteMessage(websocket.TextMessage, []byte("subscribe:META")))
	readFrame(t, other)

	trades := []lob.Trade{{
		Bid: lob.TradeLeg{OrderID: 1, Price: 10, Quantity: 3},
		Ask: lob.TradeLeg{OrderID: 2, Price: 10, Quantity: 3},
	}}
	s.PublishTrades("META", trades)

	want := "Bid: 1 Price: 10 Quantity: 3 | Ask: 2 Price: 10 Quantity: 3,"
	assert.Equal(t, want, readFrame(t, subscribed))
	assert.Equal(t, want, readFrame(t, other))
}

func TestUnsubscribeStopsTrades(t *testing.T) {
	s, _, ts := newTestServer(t)

	conn := dial(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:META")))
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("unsubscribe:META")))

	// Unsubscribe races the publish below; poll until the subscription map
	// has been updated.
	require.Eventually(t, func() bool {
		s.subMu.RLock()
		defer s.subMu.RUnlock()
		return len(s.subscriptions["META"]) == 0
	}, 2*time.Second, 10*time.Millisecond)

	s.PublishTrades("META", []lob.Trade{{
		Bid: lob.TradeLeg{OrderID: 1, Price: 10, Quantity: 1},
		Ask: lob.TradeLeg{OrderID: 2, Price: 10, Quantity: 1},
	}})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no frame expected after unsubscribe")
}

func TestTradeOrderPreservedPerSymbol(t *testing.T) {
	s, _, ts := newTestServer(t)

	conn := dial(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("subscribe:META")))
	readFrame(t, conn)

	for i := 1; i <= 10; i++ {
		s.PublishTrades("META", []lob.Trade{{
			Bid: lob.TradeLeg{OrderID: lob.OrderID(i), Price: 10, Quantity: 1},
			Ask: lob.TradeLeg{OrderID: 100, Price: 10, Quantity: 1},
		}})
	}

	for i := 1; i <= 10; i++ {
		frame := readFrame(t, conn)
		assert.True(t, strings.HasPrefix(frame, "Bid: "+strconv.Itoa(i)+" "), "frame %d out of order: %q", i, frame)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
