package pxdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pxfeed/internal/dispatch"
	"pxfeed/internal/model"

	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentRequest struct {
	kind     string
	id       model.RequestID
	spec     model.ContractSpec
	duration string
	barSize  string
	keepLive bool
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []sentRequest
	failOn   string
}

func (p *fakeProvider) record(req sentRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn == req.kind {
		return errUpstream
	}
	p.requests = append(p.requests, req)
	return nil
}

func (p *fakeProvider) RequestPriceSeries(_ context.Context, id model.RequestID, spec model.ContractSpec, duration, barSize string, keepLive bool) error {
	return p.record(sentRequest{kind: "price", id: id, spec: spec, duration: duration, barSize: barSize, keepLive: keepLive})
}

func (p *fakeProvider) RequestContract(_ context.Context, id model.RequestID, spec model.ContractSpec) error {
	return p.record(sentRequest{kind: "contract", id: id, spec: spec})
}

func (p *fakeProvider) RequestTickStream(_ context.Context, id model.RequestID, spec model.ContractSpec) error {
	return p.record(sentRequest{kind: "tick", id: id, spec: spec})
}

func (p *fakeProvider) sent() []sentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentRequest(nil), p.requests...)
}

type recorder struct {
	historical chan HistoricalEvent
	ticks      chan TickEvent
}

func newRecorder() *recorder {
	return &recorder{
		historical: make(chan HistoricalEvent, 64),
		ticks:      make(chan TickEvent, 64),
	}
}

func (r *recorder) OnHistoricalUpdate(_ context.Context, event HistoricalEvent) {
	r.historical <- event
}

func (r *recorder) OnTick(_ context.Context, event TickEvent) {
	r.ticks <- event
}

var testSpec = model.ContractSpec{Symbol: "MNQ", SecType: "FUT", Exchange: "CME", Currency: "USD"}

var testContract = model.Contract{ConID: 42, Symbol: "MNQ", SecType: "FUT", Exchange: "CME", Currency: "USD", LocalSymbol: "MNQZ6"}

func newTestUsecase(t *testing.T, cfg Config) (*Usecase, *fakeProvider, *fakeClock) {
	t.Helper()
	provider := &fakeProvider{}
	clock := newFakeClock()
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch = dispatch.Config{Workers: 2, QueueSize: 64, Overflow: dispatch.OverflowBlock}
	}
	use := NewUsecase(provider, cfg, WithClock(clock))
	require.NoError(t, use.Start(t.Context()))
	t.Cleanup(func() { _ = use.Close() })
	return use, provider, clock
}

// barrier waits until everything queued for priceID before it has run.
func barrier(t *testing.T, use *Usecase, priceID model.RequestID) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, use.dispatcher.Submit(uint64(priceID), func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch barrier timeout")
	}
}

func bar(epoch int64, close float64) model.Bar {
	return model.Bar{EpochSec: epoch, Open: close, High: close, Low: close, Close: close, Volume: 1, WAP: close, TradeCount: 1}
}

func epochs(bars model.Bars) []int64 {
	out := make([]int64, 0, len(bars))
	for _, b := range bars {
		out = append(out, b.EpochSec)
	}
	return out
}
