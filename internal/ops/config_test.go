package ops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pxfeed/internal/dispatch"
	"pxfeed/internal/pxdata"
	"pxfeed/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
debounce: 2s
capacity: 120
dispatch:
  workers: 8
  queue_size: 256
  overflow: block
replay:
  path: ${PXFEED_TEST_DIR}/feed.jsonl
  speed: 4
postgres:
  enabled: true
  host: db
  user: px
  database: bars
pyroscope:
  addr: http://pyroscope:4040
stats_interval: 10s
subscriptions:
  - spec:
      symbol: AAPL
      secType: STK
      exchange: SMART
      currency: USD
    bar_size: 5 mins
  - spec:
      conId: 756733
`

func TestLoadFromReader(t *testing.T) {
	t.Setenv("PXFEED_TEST_DIR", "/data")

	cfg, err := LoadFromReader(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Pxdata.DebounceWindow)
	assert.Equal(t, 120, cfg.Pxdata.Capacity)
	assert.Equal(t, 8, cfg.Pxdata.Dispatch.Workers)
	assert.Equal(t, 256, cfg.Pxdata.Dispatch.QueueSize)
	assert.Equal(t, dispatch.OverflowBlock, cfg.Pxdata.Dispatch.Overflow)
	assert.Equal(t, "/data/feed.jsonl", cfg.Replay.Path)
	assert.Equal(t, 4.0, cfg.Replay.Speed)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "http://pyroscope:4040", cfg.Pyroscope.Addr)
	assert.Equal(t, "pxfeed", cfg.Pyroscope.Application)
	assert.Equal(t, 10*time.Second, cfg.StatsInterval)

	require.Len(t, cfg.Subscriptions, 2)
	assert.Equal(t, "AAPL", cfg.Subscriptions[0].Spec.Symbol)
	assert.Equal(t, "5 mins", cfg.Subscriptions[0].BarSize)
	assert.Equal(t, defaultDuration, cfg.Subscriptions[0].Duration)
	assert.Equal(t, int64(756733), cfg.Subscriptions[1].Spec.ConID)
	assert.Equal(t, defaultBarSize, cfg.Subscriptions[1].BarSize)

	opt := cfg.Postgres.Option()
	assert.Equal(t, "db", opt.Host)
	assert.Equal(t, "bars", opt.Database)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, pxdata.DefaultDebounceWindow, cfg.Pxdata.DebounceWindow)
	assert.Equal(t, 0, cfg.Pxdata.Capacity)
	assert.Equal(t, dispatch.OverflowDropOldest, cfg.Pxdata.Dispatch.Overflow)
	assert.Equal(t, defaultStatsInterval, cfg.StatsInterval)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Empty(t, cfg.Subscriptions)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pxfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capacity: 30\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Pxdata.Capacity)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PXFEED_DEBOUNCE", "750ms")
	t.Setenv("PXFEED_CAPACITY", "64")
	t.Setenv("PXFEED_WORKERS", "2")
	t.Setenv("PXFEED_OVERFLOW", "drop_newest")
	t.Setenv("PXFEED_REPLAY_SPEED", "0.5")
	t.Setenv("PXFEED_PG_DSN", "postgres://px@localhost/bars")

	cfg, err := LoadFromReader(strings.NewReader("capacity: 10\ndebounce: 1s\n"))
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Pxdata.DebounceWindow)
	assert.Equal(t, 64, cfg.Pxdata.Capacity)
	assert.Equal(t, 2, cfg.Pxdata.Dispatch.Workers)
	assert.Equal(t, dispatch.OverflowDropNewest, cfg.Pxdata.Dispatch.Overflow)
	assert.Equal(t, 0.5, cfg.Replay.Speed)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "postgres://px@localhost/bars", cfg.Postgres.Option().ConnString)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"negative capacity": "capacity: -1\n",
		"bad debounce":      "debounce: soon\n",
		"zero debounce":     "debounce: 0s\n",
		"negative speed":    "replay:\n  speed: -2\n",
		"empty spec":        "subscriptions:\n  - bar_size: 1 min\n",
		"bad yaml":          "capacity: [\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(src))
			require.ErrorIs(t, err, exception.ErrConfigInvalid)
		})
	}

	_, err := LoadFromReader(strings.NewReader("dispatch:\n  overflow: spill\n"))
	require.ErrorIs(t, err, exception.ErrDispatchInvalidPolicy)
}

func TestEnvOverrideInvalidNumber(t *testing.T) {
	t.Setenv("PXFEED_CAPACITY", "lots")
	_, err := LoadFromReader(strings.NewReader(""))
	require.ErrorIs(t, err, exception.ErrConfigInvalid)
}
