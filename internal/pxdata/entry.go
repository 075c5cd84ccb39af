package pxdata

import (
	"slices"
	"sync"
	"time"

	"pxfeed/internal/model"
)

// EntryState is the readiness of a cache entry.
type EntryState uint8

const (
	StateUninitialized EntryState = iota
	StatePartiallyReady
	StateReady
)

func (s EntryState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePartiallyReady:
		return "partially_ready"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Entry is the bar cache of one price-series subscription.
//
// Bars are kept in a map keyed by epoch second plus a sorted key slice, so
// overwrites are O(1) and drains come out ascending without sorting.
// The ingestion goroutine is the only writer; the mutex exists for readers on
// other goroutines.
type Entry struct {
	mu sync.Mutex

	sub      Subscription
	bars     map[int64]model.Bar
	keys     []int64
	contract *model.Contract
	gate     Gate

	// capacity 0 with autoCapacity set means "freeze at the backfill size".
	capacity     int
	autoCapacity bool
	backfilled   bool

	onHistorical HistoricalHandler
	onTick       TickHandler
}

// NewEntry creates an empty entry. capacity <= 0 freezes the capacity at the
// size reached by the backfill.
func NewEntry(sub Subscription, capacity int, window time.Duration, onHistorical HistoricalHandler, onTick TickHandler) *Entry {
	e := &Entry{
		sub:          sub,
		bars:         make(map[int64]model.Bar),
		gate:         NewGate(window),
		capacity:     capacity,
		onHistorical: onHistorical,
		onTick:       onTick,
	}
	if capacity <= 0 {
		e.capacity = 0
		e.autoCapacity = true
	}
	return e
}

func (e *Entry) Subscription() Subscription {
	return e.sub
}

// Upsert inserts or overwrites the bar at its epoch and reports whether the
// epoch was absent before. With evictOnOverflow, inserting a new epoch removes
// the smallest epochs until the size is back within capacity. Overwrites
// never evict.
func (e *Entry) Upsert(bar model.Bar, evictOnOverflow bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, exists := e.bars[bar.EpochSec]
	if evictOnOverflow {
		e.freezeCapacity()
	}

	e.bars[bar.EpochSec] = bar
	if !exists {
		idx, _ := slices.BinarySearch(e.keys, bar.EpochSec)
		e.keys = slices.Insert(e.keys, idx, bar.EpochSec)
	}

	if !exists && evictOnOverflow && e.capacity > 0 {
		for len(e.keys) > e.capacity {
			delete(e.bars, e.keys[0])
			e.keys = slices.Delete(e.keys, 0, 1)
		}
	}

	return !exists
}

// MarkBackfilled records the end of the backfill.
func (e *Entry) MarkBackfilled() {
	e.mu.Lock()
	e.backfilled = true
	e.freezeCapacity()
	e.mu.Unlock()
}

func (e *Entry) freezeCapacity() {
	if e.autoCapacity && e.capacity == 0 {
		e.capacity = len(e.keys)
	}
}

// Resolve attaches the contract unless one is attached already.
func (e *Entry) Resolve(contract model.Contract) {
	e.mu.Lock()
	if e.contract == nil {
		e.contract = &contract
	}
	e.mu.Unlock()
}

// Contract returns the resolved contract, if any.
func (e *Entry) Contract() (model.Contract, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.contract == nil {
		return model.Contract{}, false
	}
	return *e.contract, true
}

// IsReady reports whether the contract is resolved and at least one bar is cached.
func (e *Entry) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready()
}

func (e *Entry) ready() bool {
	return e.contract != nil && len(e.keys) != 0
}

func (e *Entry) State() EntryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.ready():
		return StateReady
	case e.contract != nil || len(e.keys) != 0:
		return StatePartiallyReady
	default:
		return StateUninitialized
	}
}

// DispatchAllowed reports the debounce gate's verdict without moving it.
func (e *Entry) DispatchAllowed(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.Allowed(now)
}

// DrainForDispatch returns the bars in ascending epoch order and restarts the
// debounce window at now. Every call counts as a dispatch.
func (e *Entry) DrainForDispatch(now time.Time) model.Bars {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drain(now)
}

// tryDrain drains only when the entry is ready and the gate is open.
func (e *Entry) tryDrain(now time.Time) (model.Contract, model.Bars, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready() || !e.gate.Allowed(now) {
		return model.Contract{}, nil, false
	}
	return *e.contract, e.drain(now), true
}

func (e *Entry) drain(now time.Time) model.Bars {
	e.gate.mark(now)
	return e.copyBars()
}

// Bars returns a copy of the cached bars without touching the debounce gate.
func (e *Entry) Bars() model.Bars {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyBars()
}

func (e *Entry) copyBars() model.Bars {
	bars := make(model.Bars, 0, len(e.keys))
	for _, key := range e.keys {
		bars = append(bars, e.bars[key])
	}
	return bars
}

func (e *Entry) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.keys)
}

// Capacity returns the eviction bound, 0 while it is not frozen yet.
func (e *Entry) Capacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capacity
}

func (e *Entry) Backfilled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backfilled
}
