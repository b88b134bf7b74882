package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	snapshotsReceived atomic.Uint64
	parseErrors       atomic.Uint64
	reconnects        atomic.Uint64
	droppedEvents     atomic.Uint64
	recomputes        atomic.Uint64

	// Recompute latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	connected  atomic.Int32 // 1 = connected, 0 = not
	feedFailed atomic.Int32 // 1 = reconnect budget exhausted
}

// RecordSnapshot records one decoded inbound snapshot.
func (m *Metrics) RecordSnapshot() {
	m.snapshotsReceived.Add(1)
}

// RecordParseError records a malformed inbound frame.
func (m *Metrics) RecordParseError() {
	m.parseErrors.Add(1)
}

// RecordReconnect records one reconnect attempt being scheduled.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// RecordDroppedEvent records an event dropped on a full inbox.
func (m *Metrics) RecordDroppedEvent() {
	m.droppedEvents.Add(1)
}

// RecordRecompute records one cost-model pass with its latency.
func (m *Metrics) RecordRecompute(latencyNs int64) {
	m.recomputes.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// SetConnected sets the feed connection gauge.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Store(1)
	} else {
		m.connected.Store(0)
	}
}

// SetFeedFailed sets the terminal-failure gauge (true once the reconnect
// budget is exhausted).
func (m *Metrics) SetFeedFailed(failed bool) {
	if failed {
		m.feedFailed.Store(1)
	} else {
		m.feedFailed.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	SnapshotsReceived uint64
	ParseErrors       uint64
	Reconnects        uint64
	DroppedEvents     uint64
	Recomputes        uint64
	AvgRecomputeNs    int64
	Connected         bool
	FeedFailed        bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		SnapshotsReceived: m.snapshotsReceived.Load(),
		ParseErrors:       m.parseErrors.Load(),
		Reconnects:        m.reconnects.Load(),
		DroppedEvents:     m.droppedEvents.Load(),
		Recomputes:        m.recomputes.Load(),
		AvgRecomputeNs:    avgLatency,
		Connected:         m.connected.Load() == 1,
		FeedFailed:        m.feedFailed.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.snapshotsReceived.Store(0)
	m.parseErrors.Store(0)
	m.reconnects.Store(0)
	m.droppedEvents.Store(0)
	m.recomputes.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.connected.Store(0)
	m.feedFailed.Store(0)
}
