package pxdata

import "time"

// DefaultDebounceWindow is the minimum gap between two historical dispatches
// of one subscription.
const DefaultDebounceWindow = 5 * time.Second

// Gate limits how often an entry may dispatch. Only a drain moves the clock,
// so repeated checks between drains agree with each other.
type Gate struct {
	window time.Duration
	last   time.Time
}

func NewGate(window time.Duration) Gate {
	return Gate{window: window}
}

// Allowed reports whether more than the window has elapsed since the last drain.
func (g Gate) Allowed(now time.Time) bool {
	return now.Sub(g.last) > g.window
}

// LastDispatch returns the time of the last drain, zero if none.
func (g Gate) LastDispatch() time.Time {
	return g.last
}

func (g *Gate) mark(now time.Time) {
	g.last = now
}
