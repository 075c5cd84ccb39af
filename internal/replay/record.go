package replay

import (
	"strconv"
	"strings"

	"pxfeed/internal/model"
	"pxfeed/internal/model/enum"
	"pxfeed/internal/pxdata"
	"pxfeed/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// Record kinds of a feed line.
const (
	KindContract  = "contract"
	KindBar       = "bar"
	KindBarEnd    = "bar_end"
	KindBarUpdate = "bar_update"
	KindTick      = "tick"
)

// Record is one provider callback of a JSON-lines feed.
//
// A record addresses its subscription either by Symbol, resolved against the
// requests the replay has received, or by an explicit ID.
type Record struct {
	OffsetMs int64             `json:"offsetMs"`
	Kind     string            `json:"kind"`
	Symbol   string            `json:"symbol"`
	ID       *int64            `json:"id"`
	Contract *model.Contract   `json:"contract"`
	Bar      *BarPayload       `json:"bar"`
	Start    string            `json:"start"`
	End      string            `json:"end"`
	TickType *uint16           `json:"tickType"`
	TickName string            `json:"tickName"`
	Price    decimal.Decimal   `json:"price"`
	Attrib   pxdata.TickAttrib `json:"attrib"`
}

// BarPayload is the wire form of a bar. Prices travel as decimal text.
type BarPayload struct {
	EpochSec   int64           `json:"epochSec"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     decimal.Decimal `json:"volume"`
	WAP        decimal.Decimal `json:"wap"`
	TradeCount int64           `json:"tradeCount"`
}

// DecodeRecord parses one feed line.
func DecodeRecord(line []byte) (Record, error) {
	var rec Record
	if err := sonic.ConfigFastest.Unmarshal(line, &rec); err != nil {
		return Record{}, errors.Wrap(exception.ErrReplayDecode, err.Error())
	}
	rec.Kind = strings.ToLower(strings.TrimSpace(rec.Kind))
	switch rec.Kind {
	case KindContract:
		if rec.Contract == nil {
			return Record{}, errors.Wrap(exception.ErrReplayDecode, "contract record without contract")
		}
	case KindBar, KindBarUpdate:
		if rec.Bar == nil {
			return Record{}, errors.Wrapf(exception.ErrReplayDecode, "%s record without bar", rec.Kind)
		}
	case KindBarEnd:
	case KindTick:
		if rec.TickType == nil && rec.TickName == "" {
			return Record{}, errors.Wrap(exception.ErrReplayDecode, "tick record without tick type")
		}
	default:
		return Record{}, errors.Wrapf(exception.ErrReplayUnknown, "kind: %q", rec.Kind)
	}
	if rec.ID == nil && rec.Symbol == "" {
		return Record{}, errors.Wrap(exception.ErrReplayDecode, "record without symbol or id")
	}
	return rec, nil
}

// RequestKind is the upstream request a record answers.
func (rec Record) RequestKind() enum.RequestKind {
	switch rec.Kind {
	case KindContract:
		return enum.RequestContract
	case KindBar, KindBarEnd, KindBarUpdate:
		return enum.RequestPriceSeries
	case KindTick:
		return enum.RequestTickStream
	default:
		return 0
	}
}

// TickKind resolves the numeric or named tick type.
func (rec Record) TickKind() (enum.TickKind, bool) {
	if rec.TickType != nil {
		return enum.TickKind(*rec.TickType), true
	}
	return enum.ParseTickKind(strings.ToUpper(rec.TickName))
}

// Model converts the wire bar.
func (p BarPayload) Model() (model.Bar, error) {
	var (
		bar = model.Bar{EpochSec: p.EpochSec, TradeCount: p.TradeCount}
		err error
	)
	fields := []struct {
		name string
		src  decimal.Decimal
		dst  *float64
	}{
		{"open", p.Open, &bar.Open},
		{"high", p.High, &bar.High},
		{"low", p.Low, &bar.Low},
		{"close", p.Close, &bar.Close},
		{"volume", p.Volume, &bar.Volume},
		{"wap", p.WAP, &bar.WAP},
	}
	for _, f := range fields {
		if *f.dst, err = toFloat(f.src); err != nil {
			return model.Bar{}, errors.Wrap(err, "convert bar field").With("field", f.name)
		}
	}
	return bar, nil
}

func toFloat(d decimal.Decimal) (float64, error) {
	return strconv.ParseFloat(d.String(), 64)
}
