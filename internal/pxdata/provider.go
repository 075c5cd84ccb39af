package pxdata

import (
	"context"

	"pxfeed/internal/model"
	"pxfeed/internal/model/enum"
)

// Provider sends requests to the market-data upstream. Answers come back
// through Callbacks keyed by the same id.
type Provider interface {
	RequestPriceSeries(ctx context.Context, id model.RequestID, spec model.ContractSpec, duration, barSize string, keepLive bool) error
	RequestContract(ctx context.Context, id model.RequestID, spec model.ContractSpec) error
	RequestTickStream(ctx context.Context, id model.RequestID, spec model.ContractSpec) error
}

// TickAttrib is the flag set the upstream attaches to price ticks.
type TickAttrib struct {
	CanAutoExecute bool `json:"canAutoExecute"`
	PastLimit      bool `json:"pastLimit"`
	PreOpen        bool `json:"preOpen"`
}

// Callbacks is what the upstream read loop drives, serially, on one goroutine.
type Callbacks interface {
	OnContractResolved(id model.RequestID, contract model.Contract)
	OnHistoricalBar(id model.RequestID, bar model.Bar)
	OnHistoricalBarEnd(id model.RequestID, start, end string)
	OnHistoricalBarUpdate(id model.RequestID, bar model.Bar)
	OnTick(id model.RequestID, kind enum.TickKind, price float64, attrib TickAttrib)
}
