package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/event"
	"tradesim/internal/infra"
	"tradesim/internal/model"
)

const (
	// HistoryCapacity bounds the time-series ring. Oldest points are
	// evicted FIFO on overflow.
	HistoryCapacity = 100

	defaultInboxSize = 1024
)

// Orchestrator is the single stateful component: it wires feed events and
// parameter changes to the cost engine, holds the current snapshot and
// result, and keeps a bounded time-series of past results.
//
// Run MUST be driven by a single goroutine. Each event is handled to
// completion before the next, so a result always reflects exactly one
// snapshot+parameter pair. The RWMutex exists only for external readers
// (UI collaborators), which see either the fully-old or fully-new state.
type Orchestrator struct {
	inbox   chan event.Event
	engine  *model.CostEngine
	runtime *infra.Metrics

	mu       sync.RWMutex
	params   domain.SimulationParameters
	snapshot *domain.OrderBookSnapshot
	metrics  domain.MarketMetrics
	result   *domain.SimulationResult

	// History ring buffer. head is the next write position; when count
	// reaches capacity the write overwrites the oldest point.
	history []domain.TimeSeriesPoint
	head    int
	count   int

	connected   bool
	lastUpdated time.Time
	lastError   string
}

// New creates an orchestrator with the given engine and initial parameters.
func New(engine *model.CostEngine, params domain.SimulationParameters, runtime *infra.Metrics) *Orchestrator {
	if runtime == nil {
		runtime = &infra.Metrics{}
	}
	return &Orchestrator{
		inbox:   make(chan event.Event, defaultInboxSize),
		engine:  engine,
		runtime: runtime,
		params:  params,
		history: make([]domain.TimeSeriesPoint, HistoryCapacity),
	}
}

// Inbox returns the event channel. The feed and UI collaborators send
// events here.
func (o *Orchestrator) Inbox() chan<- event.Event {
	return o.inbox
}

// Run starts the dispatch loop. This MUST be run in a single goroutine.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("Orchestrator started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Orchestrator stopping...")
			return
		case ev := <-o.inbox:
			o.processEvent(ev)
		}
	}
}

func (o *Orchestrator) processEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.Connected:
		o.mu.Lock()
		o.connected = true
		o.lastError = ""
		o.mu.Unlock()
	case *event.Snapshot:
		book := e.Book
		event.ReleaseSnapshot(e)
		o.handleSnapshot(book)
	case event.Error:
		o.handleError(e.Err)
	case event.Closed:
		reason := e.Reason
		if reason == "" {
			reason = fmt.Sprintf("connection closed (code %d)", e.Code)
		}
		o.mu.Lock()
		o.connected = false
		o.lastError = reason
		o.mu.Unlock()
	case event.ParamsChanged:
		o.handleParamsChanged(e.Params)
	default:
		slog.Warn("Unknown event type", slog.Any("kind", ev.Kind()))
	}
}

// handleSnapshot recomputes metrics and result for a new snapshot, then
// appends one history point. A snapshot with an empty or missing best level
// is skipped entirely; the last known good result stays authoritative.
func (o *Orchestrator) handleSnapshot(book *domain.OrderBookSnapshot) {
	if book == nil || !book.HasBothSides() {
		o.mu.Lock()
		o.lastError = domain.ErrDegenerateBook.Error()
		o.mu.Unlock()
		slog.Debug("Skipping snapshot", slog.Any("error", domain.ErrDegenerateBook))
		return
	}

	metrics := model.ComputeMetrics(book)
	o.mu.RLock()
	params := o.params
	o.mu.RUnlock()
	result := o.engine.Estimate(book, metrics, params)

	bestAsk, _ := book.BestAsk()
	bestBid, _ := book.BestBid()
	now := time.Now()

	o.mu.Lock()
	o.snapshot = book
	o.metrics = metrics
	o.result = &result
	o.appendPointLocked(domain.TimeSeriesPoint{
		Timestamp:               now,
		ExpectedSlippagePct:     result.ExpectedSlippagePct,
		ExpectedFeesAbs:         result.ExpectedFeesAbs,
		ExpectedMarketImpactPct: result.ExpectedMarketImpactPct,
		NetCostAbs:              result.NetCostAbs,
		MakerTakerProportion:    result.MakerTakerProportion,
		BestAsk:                 bestAsk.Price,
		BestBid:                 bestBid.Price,
	})
	o.lastUpdated = now
	o.lastError = ""
	o.mu.Unlock()

	o.runtime.RecordRecompute(int64(result.ComputeLatencyMs * float64(time.Millisecond)))
}

// handleParamsChanged recomputes against the most recently stored snapshot
// but does NOT append a history point: parameter tweaks between snapshots
// would otherwise inflate the series density.
func (o *Orchestrator) handleParamsChanged(params domain.SimulationParameters) {
	o.mu.Lock()
	o.params = params
	book := o.snapshot
	metrics := o.metrics
	o.mu.Unlock()

	if book == nil {
		return // no snapshot yet, the next one picks up the new parameters
	}

	result := o.engine.Estimate(book, metrics, params)

	o.mu.Lock()
	o.result = &result
	o.lastUpdated = time.Now()
	o.mu.Unlock()

	o.runtime.RecordRecompute(int64(result.ComputeLatencyMs * float64(time.Millisecond)))
}

// handleError flips the connection status for transport-level failures.
// Parse errors keep the connection status: the socket is still up and the
// last snapshot remains authoritative.
func (o *Orchestrator) handleError(err error) {
	var parseErr *domain.ParseError
	transport := !errors.As(err, &parseErr)

	o.mu.Lock()
	o.lastError = err.Error()
	if transport {
		o.connected = false
	}
	o.mu.Unlock()

	if transport {
		slog.Warn("Feed error", slog.Any("error", err))
	} else {
		slog.Debug("Frame parse error", slog.Any("error", err))
	}
}

// appendPointLocked writes one point into the ring, evicting the oldest
// when full. Caller holds the write lock.
func (o *Orchestrator) appendPointLocked(p domain.TimeSeriesPoint) {
	o.history[o.head] = p
	o.head = (o.head + 1) % len(o.history)
	if o.count < len(o.history) {
		o.count++
	}
}

// UpdateParameters validates and enqueues a parameter change. The change is
// applied by the dispatch loop, in order with snapshot events.
func (o *Orchestrator) UpdateParameters(params domain.SimulationParameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	o.inbox <- event.ParamsChanged{Params: params}
	return nil
}

// Parameters returns the currently applied parameters.
func (o *Orchestrator) Parameters() domain.SimulationParameters {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.params
}

// Result returns the current cost estimate and whether one exists yet.
func (o *Orchestrator) Result() (domain.SimulationResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.result == nil {
		return domain.SimulationResult{}, false
	}
	return *o.result, true
}

// Metrics returns the market metrics of the last good snapshot.
func (o *Orchestrator) Metrics() domain.MarketMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.metrics
}

// History returns the time series oldest-first. The returned slice is a
// copy and safe to retain.
func (o *Orchestrator) History() []domain.TimeSeriesPoint {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]domain.TimeSeriesPoint, 0, o.count)
	start := o.head - o.count
	if start < 0 {
		start += len(o.history)
	}
	for i := 0; i < o.count; i++ {
		out = append(out, o.history[(start+i)%len(o.history)])
	}
	return out
}

// IsConnected reports the feed connection status as last observed.
func (o *Orchestrator) IsConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.connected
}

// LastUpdated returns the last recomputation time, empty before the first.
func (o *Orchestrator) LastUpdated() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastUpdated.IsZero() {
		return ""
	}
	return o.lastUpdated.Format(time.RFC3339)
}

// LastError returns a human-readable description of the last failure,
// empty after a successful (re)connect.
func (o *Orchestrator) LastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastError
}

// Runtime returns a point-in-time runtime metrics snapshot.
func (o *Orchestrator) Runtime() infra.MetricsSnapshot {
	return o.runtime.Snapshot()
}
