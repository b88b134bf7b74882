package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/domain"
	"tradesim/internal/event"
	"tradesim/internal/infra"
)

const validFrame = `{"timestamp":"2025-05-04T10:39:13Z","exchange":"OKX","symbol":"BTC-USDT-SWAP",` +
	`"asks":[["100","2"],["101","3"]],"bids":[["99","5"],["98","1"]]}`

func TestBackoff(t *testing.T) {
	f := New(Config{URL: "ws://example"}, nil, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 8000 * time.Millisecond},
		{5, 16000 * time.Millisecond},
		{6, 30000 * time.Millisecond}, // 32s capped
		{7, 30000 * time.Millisecond},
		{10, 30000 * time.Millisecond},
		{100, 30000 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := f.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_CustomConfig(t *testing.T) {
	f := New(Config{URL: "ws://example", BaseDelay: 10 * time.Millisecond, MaxDelay: 35 * time.Millisecond}, nil, nil)

	if got := f.Backoff(2); got != 20*time.Millisecond {
		t.Errorf("Backoff(2) = %s, want 20ms", got)
	}
	if got := f.Backoff(4); got != 35*time.Millisecond {
		t.Errorf("Backoff(4) = %s, want the 35ms cap", got)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	book, err := decodeSnapshot([]byte(validFrame))
	if err != nil {
		t.Fatalf("decodeSnapshot failed: %v", err)
	}
	if book.Symbol != "BTC-USDT-SWAP" || book.Exchange != "OKX" {
		t.Errorf("unexpected identity: %s %s", book.Exchange, book.Symbol)
	}
	if len(book.Asks) != 2 || len(book.Bids) != 2 {
		t.Fatalf("unexpected level counts: %d asks, %d bids", len(book.Asks), len(book.Bids))
	}
	best, ok := book.BestAsk()
	if !ok || best.Price.String() != "100" || best.Size.String() != "2" {
		t.Errorf("best ask = %+v, want 100 x 2", best)
	}
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{{{`},
		{"short level", `{"asks":[["100"]],"bids":[]}`},
		{"bad price", `{"asks":[["abc","2"]],"bids":[]}`},
		{"bad size", `{"asks":[["100","x"]],"bids":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeSnapshot([]byte(tt.frame))
			if err == nil {
				t.Fatal("expected parse error")
			}
			var parseErr *domain.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("error type = %T, want *domain.ParseError", err)
			}
		})
	}
}

func TestHandleMessage_FullInboxDropsFrameWithoutBlocking(t *testing.T) {
	inbox := make(chan event.Event) // unbuffered, no consumer
	runtime := &infra.Metrics{}
	f := New(Config{URL: "ws://example"}, inbox, runtime)

	done := make(chan struct{})
	go func() {
		f.handleMessage([]byte(validFrame))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleMessage blocked on a full inbox")
	}

	snap := runtime.Snapshot()
	if snap.DroppedEvents != 1 {
		t.Errorf("dropped events = %d, want 1", snap.DroppedEvents)
	}
	if snap.SnapshotsReceived != 1 {
		t.Errorf("snapshots received = %d, want 1", snap.SnapshotsReceived)
	}
}

// wsServer is a test WebSocket endpoint that hands each accepted
// connection to the given session func.
type wsServer struct {
	srv *httptest.Server
	url string

	mu       sync.Mutex
	accepted int
}

func newWSServer(t *testing.T, session func(conn *websocket.Conn)) *wsServer {
	t.Helper()
	ws := &wsServer{}
	upgrader := websocket.Upgrader{}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.mu.Lock()
		ws.accepted++
		ws.mu.Unlock()
		session(conn)
	}))
	ws.url = "ws" + strings.TrimPrefix(ws.srv.URL, "http")
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) acceptedCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.accepted
}

// waitEvent pulls events from the inbox until one matches, or fails the test.
func waitEvent(t *testing.T, inbox <-chan event.Event, match func(event.Event) bool) event.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-inbox:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func TestFeed_ConnectDeliversSnapshots(t *testing.T) {
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(validFrame))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	inbox := make(chan event.Event, 64)
	f := New(Config{URL: server.url}, inbox, nil)
	if err := f.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer f.Disconnect()

	waitEvent(t, inbox, func(ev event.Event) bool {
		return ev.Kind() == event.KindConnected
	})
	if f.State() != StateConnected {
		t.Errorf("state = %s, want CONNECTED", f.State())
	}

	ev := waitEvent(t, inbox, func(ev event.Event) bool {
		return ev.Kind() == event.KindSnapshot
	})
	snap := ev.(*event.Snapshot)
	if snap.Book == nil || snap.Book.Symbol != "BTC-USDT-SWAP" {
		t.Errorf("unexpected snapshot: %+v", snap.Book)
	}
}

func TestFeed_ParseErrorIsNonFatal(t *testing.T) {
	server := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(validFrame))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	inbox := make(chan event.Event, 64)
	runtime := &infra.Metrics{}
	f := New(Config{URL: server.url}, inbox, runtime)
	if err := f.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer f.Disconnect()

	ev := waitEvent(t, inbox, func(ev event.Event) bool {
		return ev.Kind() == event.KindError
	})
	var parseErr *domain.ParseError
	if !errors.As(ev.(event.Error).Err, &parseErr) {
		t.Errorf("error = %v, want a parse error", ev.(event.Error).Err)
	}

	// A valid frame still arrives afterwards: the connection survived.
	waitEvent(t, inbox, func(ev event.Event) bool {
		return ev.Kind() == event.KindSnapshot
	})
	if f.State() != StateConnected {
		t.Errorf("state = %s, want CONNECTED after parse error", f.State())
	}
	if got := runtime.Snapshot().ParseErrors; got != 1 {
		t.Errorf("parse error count = %d, want 1", got)
	}
}

func TestFeed_ReconnectsAfterServerClose(t *testing.T) {
	server := newWSServer(t, func(conn *websocket.Conn) {
		// Drop every connection immediately to force reconnects.
		conn.Close()
	})

	inbox := make(chan event.Event, 256)
	f := New(Config{
		URL:         server.url,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		MaxAttempts: 50,
	}, inbox, nil)
	if err := f.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer f.Disconnect()

	deadline := time.Now().Add(3 * time.Second)
	for server.acceptedCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("no reconnect observed, accepted=%d", server.acceptedCount())
		}
		// Keep the inbox drained so control events never block.
		select {
		case <-inbox:
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFeed_DisconnectSuppressesReconnect(t *testing.T) {
	server := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	inbox := make(chan event.Event, 64)
	f := New(Config{
		URL:       server.url,
		BaseDelay: 5 * time.Millisecond,
		MaxDelay:  20 * time.Millisecond,
	}, inbox, nil)
	if err := f.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitEvent(t, inbox, func(ev event.Event) bool {
		return ev.Kind() == event.KindConnected
	})

	f.Disconnect()
	if f.State() != StateDisconnected {
		t.Fatalf("state = %s, want DISCONNECTED", f.State())
	}
	before := server.acceptedCount()

	// The read loop's delayed close error lands after Disconnect returns.
	// Give any (wrongly) armed backoff timer ample time to fire.
	time.Sleep(100 * time.Millisecond)

	if f.State() != StateDisconnected {
		t.Errorf("state = %s, want DISCONNECTED to persist", f.State())
	}
	if after := server.acceptedCount(); after != before {
		t.Errorf("reconnect fired after Disconnect: accepted %d -> %d", before, after)
	}
}

func TestFeed_StaleReconnectTimerDoesNotDial(t *testing.T) {
	// A backoff timer that fired just before Disconnect can run its
	// callback only after a fresh Connect has reset the flags. It must
	// recognize it no longer owns a dial, or two connections race.
	server := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	inbox := make(chan event.Event, 64)
	f := New(Config{URL: server.url}, inbox, nil)

	// Reproduce the state a fresh Connect leaves behind: CONNECTING with a
	// live session context and the intentional flag clear.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.mu.Lock()
	f.state = StateConnecting
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	f.onReconnectTimer() // the stale callback, running synchronously

	if got := f.State(); got != StateConnecting {
		t.Errorf("state = %s, want CONNECTING untouched by the stale timer", got)
	}
	if n := server.acceptedCount(); n != 0 {
		t.Errorf("stale timer dialed: accepted = %d, want 0", n)
	}
}

func TestFeed_FailsAfterExhaustingBudget(t *testing.T) {
	// Nothing listens on this address family reserved for discard.
	inbox := make(chan event.Event, 256)
	runtime := &infra.Metrics{}
	f := New(Config{
		URL:         "ws://127.0.0.1:1",
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		MaxAttempts: 3,
	}, inbox, runtime)
	if err := f.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer f.Disconnect()

	ev := waitEvent(t, inbox, func(ev event.Event) bool {
		return ev.Kind() == event.KindError && errors.Is(ev.(event.Error).Err, domain.ErrReconnectExhausted)
	})
	if ev == nil {
		t.Fatal("expected terminal error event")
	}
	if f.State() != StateFailed {
		t.Errorf("state = %s, want FAILED", f.State())
	}
	if !runtime.Snapshot().FeedFailed {
		t.Error("feed-failed gauge should be set")
	}

	// The feed does not self-heal, but an explicit Connect starts over.
	if err := f.Connect(context.Background()); err != nil {
		t.Fatalf("re-Connect failed: %v", err)
	}
	if f.State() == StateFailed {
		t.Error("explicit Connect should leave the FAILED state")
	}
}
