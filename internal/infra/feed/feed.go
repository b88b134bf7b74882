package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradesim/internal/domain"
	"tradesim/internal/event"
	"tradesim/internal/infra"
)

const (
	// DefaultBaseDelay is the first reconnect delay.
	DefaultBaseDelay = 1000 * time.Millisecond
	// DefaultMaxDelay caps the exponential backoff.
	DefaultMaxDelay = 30000 * time.Millisecond
	// DefaultMaxAttempts is the reconnect budget before the feed goes
	// terminal and waits for an explicit Connect.
	DefaultMaxAttempts = 10

	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
)

// State is the connection state of the feed.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Config tunes the feed connection.
type Config struct {
	URL         string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Feed owns one logical order-book WebSocket connection: dialing, frame
// decoding, and bounded exponential-backoff reconnection. Decoded
// snapshots and failures are delivered as events into the inbox channel in
// transport order; nothing is thrown across the processing boundary.
//
// Each consumer constructs and owns exactly one Feed.
type Feed struct {
	cfg     Config
	inbox   chan<- event.Event
	runtime *infra.Metrics

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	attempt     int
	intentional bool
	timer       *time.Timer
	ctx         context.Context
	cancel      context.CancelFunc

	wg sync.WaitGroup
}

// New creates a feed delivering events into inbox. Zero config fields fall
// back to the defaults above.
func New(cfg Config, inbox chan<- event.Event, runtime *infra.Metrics) *Feed {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if runtime == nil {
		runtime = &infra.Metrics{}
	}
	return &Feed{
		cfg:     cfg,
		inbox:   inbox,
		runtime: runtime,
		state:   StateDisconnected,
	}
}

// Backoff returns the reconnect delay for the given attempt (1-based):
// min(BaseDelay * 2^(attempt-1), MaxDelay).
func (f *Feed) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := f.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= f.cfg.MaxDelay {
			return f.cfg.MaxDelay
		}
	}
	if delay > f.cfg.MaxDelay {
		delay = f.cfg.MaxDelay
	}
	return delay
}

// State returns the current connection state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// IsConnected reports whether the transport is currently open.
func (f *Feed) IsConnected() bool {
	return f.State() == StateConnected
}

// Connect opens the transport and starts the read loop. It clears the
// intentional-close flag and resets the retry counter, so it also restarts
// a feed that went terminal after exhausting its budget. The dial happens
// asynchronously; the outcome arrives as a Connected or Error event.
func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case StateConnecting, StateConnected, StateReconnecting:
		f.mu.Unlock()
		return nil // already running
	}
	if f.cancel != nil {
		f.cancel() // release the context of a previous failed session
	}
	f.intentional = false
	f.attempt = 0
	f.state = StateConnecting
	f.ctx, f.cancel = context.WithCancel(ctx)
	dialCtx := f.ctx
	f.wg.Add(1)
	f.mu.Unlock()

	f.runtime.SetFeedFailed(false)

	go func() {
		defer f.wg.Done()
		f.dial(dialCtx)
	}()
	return nil
}

// Disconnect marks the closure as intentional, cancels any pending
// reconnect timer and closes the transport. No reconnect fires afterwards,
// even if a delayed close or error event is still in flight: every
// reconnect path re-checks the flag under the lock before acting.
func (f *Feed) Disconnect() {
	f.mu.Lock()
	f.intentional = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.closeConnLocked()
	f.state = StateDisconnected
	f.mu.Unlock()

	f.runtime.SetConnected(false)
	f.wg.Wait()
}

func (f *Feed) dial(ctx context.Context) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)

	f.mu.Lock()
	if f.intentional {
		f.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		f.mu.Unlock()
		slog.Warn("Feed dial failed", slog.String("url", f.cfg.URL), slog.Any("error", err))
		f.send(event.Error{Err: domain.NewConnectionError("dial", err)})
		f.scheduleReconnect()
		return
	}
	f.conn = conn
	f.state = StateConnected
	f.attempt = 0
	f.mu.Unlock()

	f.runtime.SetConnected(true)
	slog.Info("Feed connected", slog.String("url", f.cfg.URL))
	f.send(event.Connected{})

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.readLoop(ctx, conn)
	}()
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			f.handleReadError(err)
			return
		}
		f.handleMessage(msg)
	}
}

func (f *Feed) handleReadError(err error) {
	f.mu.Lock()
	f.closeConnLocked()
	intentional := f.intentional
	if intentional {
		f.state = StateDisconnected
	}
	f.mu.Unlock()

	f.runtime.SetConnected(false)
	if intentional {
		return // explicit Disconnect, the close error is expected
	}

	if closeErr, ok := err.(*websocket.CloseError); ok {
		f.send(event.Closed{Code: closeErr.Code, Reason: closeErr.Text})
	} else {
		f.send(event.Error{Err: domain.NewConnectionError("read", err)})
	}
	f.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt, or goes
// terminal once the budget is spent.
func (f *Feed) scheduleReconnect() {
	f.mu.Lock()
	if f.intentional {
		f.state = StateDisconnected
		f.mu.Unlock()
		return
	}
	f.attempt++
	if f.attempt > f.cfg.MaxAttempts {
		f.state = StateFailed
		f.mu.Unlock()
		slog.Error("Feed reconnect budget exhausted", slog.Int("attempts", f.cfg.MaxAttempts))
		f.runtime.SetFeedFailed(true)
		f.send(event.Error{Err: domain.ErrReconnectExhausted})
		return
	}
	f.state = StateReconnecting
	attempt := f.attempt
	delay := f.Backoff(attempt)
	f.timer = time.AfterFunc(delay, f.onReconnectTimer)
	f.mu.Unlock()

	f.runtime.RecordReconnect()
	slog.Info("Feed reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)
}

func (f *Feed) onReconnectTimer() {
	f.mu.Lock()
	// A timer that fired just before Disconnect can reach here after a
	// fresh Connect reset the flags; only a feed still RECONNECTING owns
	// this dial (Connect moves the state to CONNECTING first).
	if f.intentional || f.state != StateReconnecting || f.ctx == nil || f.ctx.Err() != nil {
		f.mu.Unlock()
		return
	}
	f.state = StateConnecting
	f.timer = nil
	ctx := f.ctx
	// Register with the WaitGroup before releasing the lock so Disconnect
	// cannot observe a zero counter while this attempt is still live.
	f.wg.Add(1)
	f.mu.Unlock()

	defer f.wg.Done()
	f.dial(ctx)
}

func (f *Feed) handleMessage(msg []byte) {
	book, err := decodeSnapshot(msg)
	if err != nil {
		// Non-fatal: report and keep the connection. The previously known
		// snapshot remains authoritative until a valid one arrives.
		f.runtime.RecordParseError()
		f.send(event.Error{Err: err})
		return
	}

	f.runtime.RecordSnapshot()
	ev := event.AcquireSnapshot()
	ev.Book = book
	select {
	case f.inbox <- ev:
	default:
		// Inbox full: the consumer is behind, so this frame is dropped
		// rather than blocking the read loop. The drop is counted.
		event.ReleaseSnapshot(ev)
		f.runtime.RecordDroppedEvent()
	}
}

// send delivers a control event, blocking until the dispatch loop takes it
// so state transitions are never lost.
func (f *Feed) send(ev event.Event) {
	f.mu.Lock()
	ctx := f.ctx
	f.mu.Unlock()
	if ctx == nil {
		return
	}
	select {
	case f.inbox <- ev:
	case <-ctx.Done():
	}
}

func (f *Feed) closeConnLocked() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}
