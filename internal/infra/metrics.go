package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ticksApplied   atomic.Uint64
	tradesExecuted atomic.Uint64
	tradesRejected atomic.Uint64
	faultsTotal    atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// NewMetrics creates a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordTick records one simulated symbol update.
func (m *Metrics) RecordTick() {
	m.ticksApplied.Add(1)
}

// RecordTrade records an executed trade with its latency.
func (m *Metrics) RecordTrade(latency time.Duration) {
	m.tradesExecuted.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordRejection records a trade refused for a client-side reason.
func (m *Metrics) RecordRejection() {
	m.tradesRejected.Add(1)
}

// RecordFault records an internal fault (bad market data, ledger write failure, recovered panic).
func (m *Metrics) RecordFault() {
	m.faultsTotal.Add(1)
}

// IncrementStreams increments active tick streams by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements active tick streams by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksApplied   uint64    `json:"ticksApplied"`
	TradesExecuted uint64    `json:"tradesExecuted"`
	TradesRejected uint64    `json:"tradesRejected"`
	FaultsTotal    uint64    `json:"faultsTotal"`
	AvgTradeNs     int64     `json:"avgTradeNs"`
	ActiveStreams  int32     `json:"activeStreams"`
	Timestamp      time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		TicksApplied:   m.ticksApplied.Load(),
		TradesExecuted: m.tradesExecuted.Load(),
		TradesRejected: m.tradesRejected.Load(),
		FaultsTotal:    m.faultsTotal.Load(),
		AvgTradeNs:     avgLatency,
		ActiveStreams:  m.activeStreams.Load(),
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ticksApplied.Store(0)
	m.tradesExecuted.Store(0)
	m.tradesRejected.Store(0)
	m.faultsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeStreams.Store(0)
}
