package obs

import (
	"sync/atomic"
	"time"
)

// DropReason tells why an ingested callback never reached a subscriber.
type DropReason uint8

const (
	DropMalformedBar DropReason = iota
	DropUnknownRequest
	DropTickKind
	DropContractPending
	DropQueueFull
	DropQueueClosed
	dropReasonCount
)

func (r DropReason) String() string {
	switch r {
	case DropMalformedBar:
		return "malformed_bar"
	case DropUnknownRequest:
		return "unknown_request"
	case DropTickKind:
		return "tick_kind"
	case DropContractPending:
		return "contract_pending"
	case DropQueueFull:
		return "queue_full"
	case DropQueueClosed:
		return "queue_closed"
	default:
		return "unknown"
	}
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	drops [dropReasonCount]uint64

	bars        uint64
	barUpdates  uint64
	ticks       uint64
	historicals uint64
	tickEvents  uint64
	suppressed  uint64
	panics      uint64

	historicalLatency LatencyStats
	tickLatency       LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Drops             map[DropReason]uint64
	Bars              uint64
	BarUpdates        uint64
	Ticks             uint64
	HistoricalEvents  uint64
	TickEvents        uint64
	Suppressed        uint64
	HandlerPanics     uint64
	HistoricalLatency LatencySnapshot
	TickLatency       LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncDrop records a dropped input or event.
func (m *Metrics) IncDrop(reason DropReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.drops) {
		atomic.AddUint64(&m.drops[idx], 1)
	}
}

// IncBar records an accepted backfill bar.
func (m *Metrics) IncBar() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bars, 1)
}

// IncBarUpdate records an accepted streaming bar update.
func (m *Metrics) IncBarUpdate() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.barUpdates, 1)
}

// IncTick records an accepted last-trade tick.
func (m *Metrics) IncTick() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
}

// IncSuppressed records an update held back by readiness or debounce.
func (m *Metrics) IncSuppressed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.suppressed, 1)
}

// IncPanic records a recovered handler panic.
func (m *Metrics) IncPanic() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.panics, 1)
}

// ObserveHistorical measures receipt-to-handler latency of a historical event.
func (m *Metrics) ObserveHistorical(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.historicals, 1)
	m.historicalLatency.Observe(d)
}

// ObserveTick measures receipt-to-handler latency of a tick event.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tickEvents, 1)
	m.tickLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	drops := make(map[DropReason]uint64)
	for i := range m.drops {
		if v := atomic.LoadUint64(&m.drops[i]); v > 0 {
			drops[DropReason(i)] = v
		}
	}
	return Snapshot{
		Drops:             drops,
		Bars:              atomic.LoadUint64(&m.bars),
		BarUpdates:        atomic.LoadUint64(&m.barUpdates),
		Ticks:             atomic.LoadUint64(&m.ticks),
		HistoricalEvents:  atomic.LoadUint64(&m.historicals),
		TickEvents:        atomic.LoadUint64(&m.tickEvents),
		Suppressed:        atomic.LoadUint64(&m.suppressed),
		HandlerPanics:     atomic.LoadUint64(&m.panics),
		HistoricalLatency: m.historicalLatency.Snapshot(),
		TickLatency:       m.tickLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
