package replay

import (
	"io"
	"strconv"

	"pxfeed/internal/model"
	"pxfeed/internal/pxdata"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Line is the encode side of Record. Prices are written as decimal text.
type Line struct {
	OffsetMs int64              `json:"offsetMs"`
	Kind     string             `json:"kind"`
	Symbol   string             `json:"symbol,omitempty"`
	ID       *int64             `json:"id,omitempty"`
	Contract *model.Contract    `json:"contract,omitempty"`
	Bar      *LineBar           `json:"bar,omitempty"`
	Start    string             `json:"start,omitempty"`
	End      string             `json:"end,omitempty"`
	TickType *uint16            `json:"tickType,omitempty"`
	TickName string             `json:"tickName,omitempty"`
	Price    string             `json:"price,omitempty"`
	Attrib   *pxdata.TickAttrib `json:"attrib,omitempty"`
}

type LineBar struct {
	EpochSec   int64  `json:"epochSec"`
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	Volume     string `json:"volume"`
	WAP        string `json:"wap"`
	TradeCount int64  `json:"tradeCount"`
}

func NewLineBar(bar model.Bar) *LineBar {
	return &LineBar{
		EpochSec:   bar.EpochSec,
		Open:       FormatPrice(bar.Open),
		High:       FormatPrice(bar.High),
		Low:        FormatPrice(bar.Low),
		Close:      FormatPrice(bar.Close),
		Volume:     FormatPrice(bar.Volume),
		WAP:        FormatPrice(bar.WAP),
		TradeCount: bar.TradeCount,
	}
}

// FormatPrice renders f with the fewest digits that parse back to f.
func FormatPrice(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Marshal encodes the line with its trailing newline.
func (l Line) Marshal() ([]byte, error) {
	buf, err := sonic.ConfigFastest.Marshal(l)
	if err != nil {
		return nil, errors.Wrap(err, "marshal feed line").With("kind", l.Kind)
	}
	return append(buf, '\n'), nil
}

// Encoder writes feed lines to an underlying writer.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(line Line) error {
	buf, err := line.Marshal()
	if err != nil {
		return err
	}
	if _, err := e.w.Write(buf); err != nil {
		return errors.Wrap(err, "write feed line")
	}
	return nil
}
