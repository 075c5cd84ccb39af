package replay

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"pxfeed/internal/model"
	"pxfeed/internal/model/enum"
	"pxfeed/internal/pxdata"
	"pxfeed/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const maxLineSize = 1 << 20

var _ pxdata.Provider = (*Replay)(nil)

// Config controls feed playback.
type Config struct {
	Path string
	// Speed scales record offsets. Zero replays without pacing.
	Speed float64
}

func (c Config) withDefaults() Config {
	c.Path = strings.TrimSpace(c.Path)
	return c
}

// Validate checks if the config is usable.
func (c Config) Validate() error {
	if c.Speed < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "replay speed must be >= 0")
	}
	return nil
}

// Clock allows deterministic playback control.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type requestKey struct {
	symbol string
	kind   enum.RequestKind
}

// Request is an upstream request received by the replay.
type Request struct {
	ID       model.RequestID
	Kind     enum.RequestKind
	Spec     model.ContractSpec
	Duration string
	BarSize  string
	KeepLive bool
}

// Replay is a Provider that answers requests from a recorded JSON-lines feed.
type Replay struct {
	cfg   Config
	clock Clock

	mu       sync.RWMutex
	ids      map[requestKey]model.RequestID
	requests []Request
}

// New validates the config and creates a replay provider.
func New(cfg Config) (*Replay, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Replay{
		cfg:   cfg,
		clock: realClock{},
		ids:   make(map[requestKey]model.RequestID),
	}, nil
}

// WithClock swaps the clock implementation.
func (r *Replay) WithClock(clock Clock) *Replay {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *Replay) RequestPriceSeries(_ context.Context, id model.RequestID, spec model.ContractSpec, duration, barSize string, keepLive bool) error {
	r.record(Request{ID: id, Kind: enum.RequestPriceSeries, Spec: spec, Duration: duration, BarSize: barSize, KeepLive: keepLive})
	return nil
}

func (r *Replay) RequestContract(_ context.Context, id model.RequestID, spec model.ContractSpec) error {
	r.record(Request{ID: id, Kind: enum.RequestContract, Spec: spec})
	return nil
}

func (r *Replay) RequestTickStream(_ context.Context, id model.RequestID, spec model.ContractSpec) error {
	r.record(Request{ID: id, Kind: enum.RequestTickStream, Spec: spec})
	return nil
}

// Requests returns the requests received so far in arrival order.
func (r *Replay) Requests() []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Request, len(r.requests))
	copy(out, r.requests)
	return out
}

func (r *Replay) record(req Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[requestKey{symbol: strings.ToUpper(req.Spec.Symbol), kind: req.Kind}] = req.ID
	r.requests = append(r.requests, req)
}

func (r *Replay) lookup(symbol string, kind enum.RequestKind) (model.RequestID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[requestKey{symbol: strings.ToUpper(symbol), kind: kind}]
	return id, ok
}

// Run opens the configured feed file and plays it.
func (r *Replay) Run(ctx context.Context, cb pxdata.Callbacks) error {
	if r.cfg.Path == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "replay path is empty")
	}
	file, err := os.Open(r.cfg.Path)
	if err != nil {
		return errors.Wrap(err, "open replay feed").With("path", r.cfg.Path)
	}
	defer file.Close()

	return r.Play(ctx, file, cb)
}

// Play decodes records from src and invokes the matching callback for each.
// Records for symbols that were never requested are skipped.
func (r *Replay) Play(ctx context.Context, src io.Reader, cb pxdata.Callbacks) error {
	if cb == nil {
		return errors.Wrap(exception.ErrNilInstance, "replay callbacks")
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		line     int
		prevOffs int64 = -1
	)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		rec, err := DecodeRecord(raw)
		if err != nil {
			return errors.Wrap(err, "decode replay record").With("line", line)
		}
		if err := r.pace(ctx, rec.OffsetMs, &prevOffs); err != nil {
			return err
		}
		if err := r.apply(rec, cb); err != nil {
			return errors.Wrap(err, "apply replay record").With("line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan replay feed")
	}
	return nil
}

func (r *Replay) apply(rec Record, cb pxdata.Callbacks) error {
	id, ok := r.resolveID(rec)
	if !ok {
		logs.Warnf("replay: skip %s record for unrequested symbol %s", rec.Kind, rec.Symbol)
		return nil
	}

	switch rec.Kind {
	case KindContract:
		cb.OnContractResolved(id, *rec.Contract)
	case KindBar, KindBarUpdate:
		bar, err := rec.Bar.Model()
		if err != nil {
			return err
		}
		if rec.Kind == KindBar {
			cb.OnHistoricalBar(id, bar)
		} else {
			cb.OnHistoricalBarUpdate(id, bar)
		}
	case KindBarEnd:
		cb.OnHistoricalBarEnd(id, rec.Start, rec.End)
	case KindTick:
		kind, ok := rec.TickKind()
		if !ok {
			return errors.Wrapf(exception.ErrReplayUnknown, "tick name: %q", rec.TickName)
		}
		price, err := toFloat(rec.Price)
		if err != nil {
			return errors.Wrap(err, "convert tick price")
		}
		cb.OnTick(id, kind, price, rec.Attrib)
	}
	return nil
}

func (r *Replay) resolveID(rec Record) (model.RequestID, bool) {
	if rec.ID != nil {
		return model.RequestID(*rec.ID), true
	}
	return r.lookup(rec.Symbol, rec.RequestKind())
}

func (r *Replay) pace(ctx context.Context, offsetMs int64, prev *int64) error {
	if r.cfg.Speed <= 0 || offsetMs < 0 {
		return nil
	}
	if *prev >= 0 {
		delta := offsetMs - *prev
		if delta > 0 {
			sleep := time.Duration(float64(time.Duration(delta)*time.Millisecond) / r.cfg.Speed)
			if err := r.clock.Sleep(ctx, sleep); err != nil {
				return err
			}
		}
	}
	*prev = offsetMs
	return nil
}
