package pxdata

import (
	"context"
	"time"

	"pxfeed/internal/model"
)

// HistoricalEvent carries the full cached series of one subscription.
type HistoricalEvent struct {
	Subscription Subscription
	Contract     model.Contract
	Bars         model.Bars
	// Elapsed runs from receipt of the raw update to the handler call.
	Elapsed time.Duration
}

// TickEvent carries one accepted last-trade price.
type TickEvent struct {
	Subscription Subscription
	Contract     model.Contract
	Price        float64
	Elapsed      time.Duration
}

// HistoricalHandler receives debounced series updates.
type HistoricalHandler interface {
	OnHistoricalUpdate(ctx context.Context, event HistoricalEvent)
}

// TickHandler receives every accepted last-trade tick.
type TickHandler interface {
	OnTick(ctx context.Context, event TickEvent)
}

type HistoricalHandlerFunc func(ctx context.Context, event HistoricalEvent)

func (f HistoricalHandlerFunc) OnHistoricalUpdate(ctx context.Context, event HistoricalEvent) {
	f(ctx, event)
}

type TickHandlerFunc func(ctx context.Context, event TickEvent)

func (f TickHandlerFunc) OnTick(ctx context.Context, event TickEvent) {
	f(ctx, event)
}
