package pxdata

import (
	"sync"

	"pxfeed/internal/model"
)

// Subscription holds the ids issued for one Subscribe call.
type Subscription struct {
	PriceID    model.RequestID
	ContractID model.RequestID
	TickID     model.RequestID
	Spec       model.ContractSpec
}

// Registry routes callback ids back to the owning cache entry.
// Records are written once at subscribe time and read afterwards.
type Registry struct {
	mu          sync.RWMutex
	byPrice     map[model.RequestID]*Entry
	tickToPrice map[model.RequestID]model.RequestID
}

func NewRegistry() *Registry {
	return &Registry{
		byPrice:     make(map[model.RequestID]*Entry),
		tickToPrice: make(map[model.RequestID]model.RequestID),
	}
}

// Register indexes the entry by its price id and its tick id.
func (r *Registry) Register(entry *Entry) {
	sub := entry.Subscription()
	r.mu.Lock()
	r.byPrice[sub.PriceID] = entry
	r.tickToPrice[sub.TickID] = sub.PriceID
	r.mu.Unlock()
}

// unregister drops a subscription whose upstream requests never went out.
func (r *Registry) unregister(sub Subscription) {
	r.mu.Lock()
	delete(r.byPrice, sub.PriceID)
	delete(r.tickToPrice, sub.TickID)
	r.mu.Unlock()
}

// Entry returns the cache entry owning a price request id.
func (r *Registry) Entry(priceID model.RequestID) (*Entry, bool) {
	r.mu.RLock()
	entry, ok := r.byPrice[priceID]
	r.mu.RUnlock()
	return entry, ok
}

// ContractIDOf maps a price request id to its contract request id.
func (r *Registry) ContractIDOf(priceID model.RequestID) (model.RequestID, bool) {
	entry, ok := r.Entry(priceID)
	if !ok {
		return 0, false
	}
	return entry.Subscription().ContractID, true
}

// PriceIDOf maps a tick request id to its price request id.
func (r *Registry) PriceIDOf(tickID model.RequestID) (model.RequestID, bool) {
	r.mu.RLock()
	priceID, ok := r.tickToPrice[tickID]
	r.mu.RUnlock()
	return priceID, ok
}

// ResolvePriceEntry follows tick id -> price id -> entry.
func (r *Registry) ResolvePriceEntry(tickID model.RequestID) (*Entry, bool) {
	priceID, ok := r.PriceIDOf(tickID)
	if !ok {
		return nil, false
	}
	return r.Entry(priceID)
}

// Entries returns every registered entry ordered by nothing in particular.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*Entry, 0, len(r.byPrice))
	for _, entry := range r.byPrice {
		entries = append(entries, entry)
	}
	return entries
}
