package obs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.IncDrop(DropMalformedBar)
	m.IncTick()
	m.ObserveHistorical(time.Second)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncDrop(DropMalformedBar)
	m.IncDrop(DropMalformedBar)
	m.IncDrop(DropTickKind)
	m.IncBar()
	m.IncBarUpdate()
	m.IncTick()
	m.IncSuppressed()
	m.ObserveHistorical(2 * time.Millisecond)
	m.ObserveHistorical(4 * time.Millisecond)
	m.ObserveTick(time.Millisecond)

	snap := m.Snapshot()
	require.Len(t, snap.Drops, 2)
	assert.Equal(t, uint64(2), snap.Drops[DropMalformedBar])
	assert.Equal(t, uint64(1), snap.Drops[DropTickKind])
	assert.Equal(t, uint64(1), snap.Bars)
	assert.Equal(t, uint64(1), snap.BarUpdates)
	assert.Equal(t, uint64(1), snap.Ticks)
	assert.Equal(t, uint64(1), snap.Suppressed)
	assert.Equal(t, uint64(2), snap.HistoricalEvents)
	assert.Equal(t, uint64(1), snap.TickEvents)

	assert.Equal(t, uint64(2), snap.HistoricalLatency.Count)
	assert.Equal(t, 2*time.Millisecond, snap.HistoricalLatency.Min)
	assert.Equal(t, 4*time.Millisecond, snap.HistoricalLatency.Max)
	assert.Equal(t, 3*time.Millisecond, snap.HistoricalLatency.Avg)
}

func TestLatencyStatsIgnoresNegative(t *testing.T) {
	var l LatencyStats
	l.Observe(-time.Second)
	assert.Equal(t, LatencySnapshot{}, l.Snapshot())
}
