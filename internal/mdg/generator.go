package mdg

import (
	"math"
	"math/rand"
	"time"

	"pxfeed/internal/model"
	"pxfeed/internal/model/enum"
	"pxfeed/internal/replay"
	"pxfeed/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	defaultBackfill   = 60
	defaultUpdates    = 120
	defaultBarSeconds = 60
	defaultBasePrice  = 100
	defaultVolatility = 0.001
	defaultUpdateGap  = 500 * time.Millisecond
)

// Config controls synthetic feed generation.
type Config struct {
	Contracts []model.Contract
	// Backfill is the number of historical bars per contract.
	Backfill int
	// Updates is the number of live bar updates per contract. Each one is
	// followed by a last-trade tick.
	Updates    int
	BarSeconds int64
	StartEpoch int64
	BasePrice  float64
	Volatility float64
	UpdateGap  time.Duration
	Seed       int64
}

func (c Config) withDefaults() Config {
	if c.Backfill == 0 {
		c.Backfill = defaultBackfill
	}
	if c.Updates == 0 {
		c.Updates = defaultUpdates
	}
	if c.BarSeconds == 0 {
		c.BarSeconds = defaultBarSeconds
	}
	if c.StartEpoch == 0 {
		c.StartEpoch = time.Now().Truncate(time.Minute).Unix()
	}
	if c.BasePrice == 0 {
		c.BasePrice = defaultBasePrice
	}
	if c.Volatility == 0 {
		c.Volatility = defaultVolatility
	}
	if c.UpdateGap == 0 {
		c.UpdateGap = defaultUpdateGap
	}
	return c
}

// Validate checks if the config is usable.
func (c Config) Validate() error {
	if len(c.Contracts) == 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "generator has no contracts")
	}
	for _, con := range c.Contracts {
		if con.Symbol == "" {
			return errors.Wrap(exception.ErrConfigInvalid, "generator contract without symbol")
		}
	}
	if c.Backfill < 0 || c.Updates < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "generator counts must be >= 0")
	}
	if c.BarSeconds < 0 || c.BasePrice < 0 || c.Volatility < 0 || c.UpdateGap < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "generator parameters must be >= 0")
	}
	return nil
}

// Generator creates a synthetic provider feed: contract metadata, a
// backfill, the backfill end marker, then interleaved live bar updates and
// ticks. Prices follow a seeded random walk.
type Generator struct {
	cfg Config
	rnd *rand.Rand
}

// NewGenerator validates the config and creates a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, rnd: rand.New(rand.NewSource(cfg.Seed))}, nil
}

type walk struct {
	con   model.Contract
	price float64
	bar   model.Bar
}

// Generate writes the whole feed to enc.
func (g *Generator) Generate(enc *replay.Encoder) (int, error) {
	var (
		written int
		walks   = make([]*walk, 0, len(g.cfg.Contracts))
	)
	emit := func(line replay.Line) error {
		if err := enc.Encode(line); err != nil {
			return err
		}
		written++
		return nil
	}

	for _, con := range g.cfg.Contracts {
		if err := emit(replay.Line{Kind: replay.KindContract, Symbol: con.Symbol, Contract: &con}); err != nil {
			return written, err
		}

		w := &walk{con: con, price: g.cfg.BasePrice}
		start := g.cfg.StartEpoch - int64(g.cfg.Backfill)*g.cfg.BarSeconds
		for i := 0; i < g.cfg.Backfill; i++ {
			w.bar = g.newBar(start+int64(i)*g.cfg.BarSeconds, w)
			if err := emit(replay.Line{Kind: replay.KindBar, Symbol: con.Symbol, Bar: replay.NewLineBar(w.bar)}); err != nil {
				return written, err
			}
		}
		if err := emit(replay.Line{
			Kind:   replay.KindBarEnd,
			Symbol: con.Symbol,
			Start:  formatBarTime(start),
			End:    formatBarTime(g.cfg.StartEpoch),
		}); err != nil {
			return written, err
		}
		w.bar = model.Bar{}
		walks = append(walks, w)
	}

	var offset time.Duration
	for i := 0; i < g.cfg.Updates; i++ {
		offset += g.cfg.UpdateGap
		epoch := g.cfg.StartEpoch + int64(offset/time.Second)/g.cfg.BarSeconds*g.cfg.BarSeconds
		for _, w := range walks {
			g.step(w, epoch)
			offsetMs := offset.Milliseconds()
			if err := emit(replay.Line{
				OffsetMs: offsetMs,
				Kind:     replay.KindBarUpdate,
				Symbol:   w.con.Symbol,
				Bar:      replay.NewLineBar(w.bar),
			}); err != nil {
				return written, err
			}
			tickType := uint16(enum.TickLast)
			if err := emit(replay.Line{
				OffsetMs: offsetMs,
				Kind:     replay.KindTick,
				Symbol:   w.con.Symbol,
				TickType: &tickType,
				Price:    replay.FormatPrice(w.price),
			}); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// step moves the walk and folds the new price into the bar of epoch.
func (g *Generator) step(w *walk, epoch int64) {
	g.move(w)
	size := float64(1 + g.rnd.Intn(100))
	if w.bar.EpochSec != epoch {
		w.bar = model.Bar{EpochSec: epoch, Open: w.price, High: w.price, Low: w.price}
	}
	notional := w.bar.WAP*w.bar.Volume + w.price*size
	w.bar.High = math.Max(w.bar.High, w.price)
	w.bar.Low = math.Min(w.bar.Low, w.price)
	w.bar.Close = w.price
	w.bar.Volume += size
	w.bar.WAP = round(notional/w.bar.Volume, w.con.MinTick)
	w.bar.TradeCount++
}

func (g *Generator) newBar(epoch int64, w *walk) model.Bar {
	open := w.price
	bar := model.Bar{EpochSec: epoch, Open: open, High: open, Low: open}
	trades := 1 + g.rnd.Intn(20)
	var notional float64
	for i := 0; i < trades; i++ {
		g.move(w)
		size := float64(1 + g.rnd.Intn(100))
		bar.High = math.Max(bar.High, w.price)
		bar.Low = math.Min(bar.Low, w.price)
		bar.Volume += size
		notional += w.price * size
	}
	bar.Close = w.price
	bar.WAP = round(notional/bar.Volume, w.con.MinTick)
	bar.TradeCount = int64(trades)
	return bar
}

func (g *Generator) move(w *walk) {
	w.price = round(w.price*(1+g.rnd.NormFloat64()*g.cfg.Volatility), w.con.MinTick)
	if w.price <= 0 {
		w.price = math.Max(w.con.MinTick, 0.01)
	}
}

func round(price, tick float64) float64 {
	if tick <= 0 {
		tick = 0.01
	}
	return math.Round(price/tick) * tick
}

func formatBarTime(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("20060102 15:04:05")
}
