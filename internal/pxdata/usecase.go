package pxdata

import (
	"context"
	"strings"
	"time"

	"pxfeed/internal/dispatch"
	"pxfeed/internal/model"
	"pxfeed/internal/model/enum"
	"pxfeed/internal/obs"
	"pxfeed/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var _ Callbacks = (*Usecase)(nil)

// Usecase correlates provider callbacks with subscriptions, keeps the bar
// cache of every subscription and hands ready updates to the dispatcher.
type Usecase struct {
	cfg        Config
	provider   Provider
	ids        Allocator
	contracts  *ContractDirectory
	registry   *Registry
	dispatcher *dispatch.Dispatcher
	metrics    *obs.Metrics
	clock      Clock
}

// NewUsecase builds the usecase; call Start before feeding callbacks.
func NewUsecase(provider Provider, cfg Config, opts ...Option) *Usecase {
	use := &Usecase{
		cfg:       cfg.withDefaults(),
		provider:  provider,
		contracts: NewContractDirectory(),
		registry:  NewRegistry(),
		metrics:   obs.NewMetrics(),
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(use)
	}
	use.dispatcher = dispatch.New(use.cfg.Dispatch, use.metrics)
	return use
}

// Start launches the dispatch workers.
func (use *Usecase) Start(ctx context.Context) error {
	return use.dispatcher.Start(ctx)
}

// Close drains pending events and stops the dispatch workers.
func (use *Usecase) Close() error {
	return use.dispatcher.Close()
}

func (use *Usecase) Metrics() *obs.Metrics {
	return use.metrics
}

// Subscribe asks the upstream for a live price series, the contract metadata
// and the tick stream of spec, and wires their answers into one cache entry.
func (use *Usecase) Subscribe(ctx context.Context, spec model.ContractSpec, duration, barSize string, onHistorical HistoricalHandler, onTick TickHandler) (Subscription, error) {
	if use == nil || use.provider == nil {
		return Subscription{}, exception.ErrNilProvider
	}
	if spec.Empty() || strings.TrimSpace(duration) == "" || strings.TrimSpace(barSize) == "" {
		return Subscription{}, errors.Wrapf(exception.ErrInvalidSubscribeRequest, "spec: %s, duration: %q, bar size: %q", spec, duration, barSize)
	}
	if onHistorical == nil || onTick == nil {
		return Subscription{}, exception.ErrNilHandler
	}

	sub := Subscription{
		PriceID:    use.ids.Next(),
		ContractID: use.ids.Next(),
		TickID:     use.ids.Next(),
		Spec:       spec,
	}

	// Register before sending so that no answer can arrive ahead of its entry.
	entry := NewEntry(sub, use.cfg.Capacity, use.cfg.DebounceWindow, onHistorical, onTick)
	use.registry.Register(entry)

	if err := use.provider.RequestPriceSeries(ctx, sub.PriceID, spec, duration, barSize, true); err != nil {
		use.registry.unregister(sub)
		return Subscription{}, errors.Wrap(err, "request "+enum.RequestPriceSeries.String()).With("id", sub.PriceID)
	}
	if err := use.provider.RequestContract(ctx, sub.ContractID, spec); err != nil {
		use.registry.unregister(sub)
		return Subscription{}, errors.Wrap(err, "request "+enum.RequestContract.String()).With("id", sub.ContractID)
	}
	if err := use.provider.RequestTickStream(ctx, sub.TickID, spec); err != nil {
		use.registry.unregister(sub)
		return Subscription{}, errors.Wrap(err, "request "+enum.RequestTickStream.String()).With("id", sub.TickID)
	}

	logs.Infof("subscribed %s, price: %s, contract: %s, tick: %s", spec, sub.PriceID, sub.ContractID, sub.TickID)
	return sub, nil
}

// Snapshot reads the cached series of a subscription without counting as a dispatch.
func (use *Usecase) Snapshot(priceID model.RequestID) (model.Contract, model.Bars, bool) {
	entry, ok := use.registry.Entry(priceID)
	if !ok {
		return model.Contract{}, nil, false
	}
	contract, _ := entry.Contract()
	return contract, entry.Bars(), true
}

// State reports the readiness of a subscription.
func (use *Usecase) State(priceID model.RequestID) (EntryState, bool) {
	entry, ok := use.registry.Entry(priceID)
	if !ok {
		return StateUninitialized, false
	}
	return entry.State(), true
}

// OnContractResolved stores the contract; entries attach it on their next update.
func (use *Usecase) OnContractResolved(id model.RequestID, contract model.Contract) {
	use.contracts.Record(id, contract)
	logs.Debugf("contract resolved, id: %s, contract: %s", id, contract)
}

// OnHistoricalBar caches a backfill bar. Backfill never evicts.
func (use *Usecase) OnHistoricalBar(id model.RequestID, bar model.Bar) {
	entry, ok := use.acceptBar(id, bar)
	if !ok {
		return
	}
	entry.Upsert(bar, false)
	use.attachContract(entry)
	use.metrics.IncBar()
}

// OnHistoricalBarEnd marks the backfill of id as complete.
func (use *Usecase) OnHistoricalBarEnd(id model.RequestID, start, end string) {
	entry, ok := use.registry.Entry(id)
	if !ok {
		use.metrics.IncDrop(obs.DropUnknownRequest)
		logs.Debugf("drop backfill end of unknown id: %s", id)
		return
	}
	entry.MarkBackfilled()
	logs.Infof("backfill done, id: %s, bars: %d, range: %s ~ %s", id, entry.Len(), start, end)
}

// OnHistoricalBarUpdate caches a live bar and dispatches the series when the
// entry is ready and its debounce window has passed.
func (use *Usecase) OnHistoricalBarUpdate(id model.RequestID, bar model.Bar) {
	receivedAt := use.clock.Now()

	entry, ok := use.acceptBar(id, bar)
	if !ok {
		return
	}
	entry.Upsert(bar, true)
	use.attachContract(entry)
	use.metrics.IncBarUpdate()

	contract, bars, ok := entry.tryDrain(use.clock.Now())
	if !ok {
		use.metrics.IncSuppressed()
		return
	}

	event := HistoricalEvent{
		Subscription: entry.Subscription(),
		Contract:     contract,
		Bars:         bars,
	}
	handler := entry.onHistorical
	use.submit(id, func(ctx context.Context) {
		event.Elapsed = use.elapsedSince(receivedAt)
		use.metrics.ObserveHistorical(event.Elapsed)
		handler.OnHistoricalUpdate(ctx, event)
	})
}

// OnTick forwards last-trade prices of resolved entries; every other tick
// kind is ignored.
func (use *Usecase) OnTick(id model.RequestID, kind enum.TickKind, price float64, _ TickAttrib) {
	receivedAt := use.clock.Now()

	if !kind.IsLastTrade() {
		use.metrics.IncDrop(obs.DropTickKind)
		return
	}

	entry, ok := use.registry.ResolvePriceEntry(id)
	if !ok {
		use.metrics.IncDrop(obs.DropUnknownRequest)
		logs.Debugf("drop tick of unknown id: %s", id)
		return
	}

	use.attachContract(entry)
	contract, ok := entry.Contract()
	if !ok {
		use.metrics.IncDrop(obs.DropContractPending)
		logs.Debugf("drop tick before contract resolved, id: %s", id)
		return
	}
	use.metrics.IncTick()

	event := TickEvent{
		Subscription: entry.Subscription(),
		Contract:     contract,
		Price:        price,
	}
	handler := entry.onTick
	use.submit(entry.Subscription().PriceID, func(ctx context.Context) {
		event.Elapsed = use.elapsedSince(receivedAt)
		use.metrics.ObserveTick(event.Elapsed)
		handler.OnTick(ctx, event)
	})
}

func (use *Usecase) acceptBar(id model.RequestID, bar model.Bar) (*Entry, bool) {
	if bar.Malformed() {
		use.metrics.IncDrop(obs.DropMalformedBar)
		logs.Debugf("drop malformed bar, id: %s, epoch: %d", id, bar.EpochSec)
		return nil, false
	}
	entry, ok := use.registry.Entry(id)
	if !ok {
		use.metrics.IncDrop(obs.DropUnknownRequest)
		logs.Debugf("drop bar of unknown id: %s", id)
		return nil, false
	}
	return entry, true
}

func (use *Usecase) attachContract(entry *Entry) {
	if _, ok := entry.Contract(); ok {
		return
	}
	if contract, ok := use.contracts.Lookup(entry.Subscription().ContractID); ok {
		entry.Resolve(contract)
	}
}

// submit keys every event by price id so one subscription's events keep
// their order on a single worker.
func (use *Usecase) submit(priceID model.RequestID, task dispatch.Task) {
	if err := use.dispatcher.Submit(uint64(priceID), task); err != nil {
		logs.Warnf("dispatch event of id %s, err: %+v", priceID, err)
	}
}

func (use *Usecase) elapsedSince(t time.Time) time.Duration {
	return use.clock.Now().Sub(t)
}
