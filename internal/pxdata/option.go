package pxdata

import (
	"time"

	"pxfeed/internal/dispatch"
	"pxfeed/internal/obs"
)

// Config controls cache bounds, debounce and dispatch.
type Config struct {
	DebounceWindow time.Duration
	// Capacity bounds each entry once live updates start. 0 keeps the size
	// the backfill reached.
	Capacity int
	Dispatch dispatch.Config
}

func (c Config) withDefaults() Config {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = DefaultDebounceWindow
	}
	if c.Capacity < 0 {
		c.Capacity = 0
	}
	return c
}

// Clock is the time source of the usecase.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type Option func(*Usecase)

// WithClock swaps the clock implementation.
func WithClock(clock Clock) Option {
	return func(use *Usecase) {
		if clock != nil {
			use.clock = clock
		}
	}
}

// WithMetrics shares a metrics container with the usecase.
func WithMetrics(metrics *obs.Metrics) Option {
	return func(use *Usecase) {
		if metrics != nil {
			use.metrics = metrics
		}
	}
}
