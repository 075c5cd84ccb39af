package model

// InvalidTradeCount marks a bar the provider could not aggregate.
const InvalidTradeCount = -1

// Bar is one OHLCV bucket keyed by the epoch second of its start.
type Bar struct {
	EpochSec   int64   `json:"epochSec"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	WAP        float64 `json:"wap"`
	TradeCount int64   `json:"tradeCount"`
}

// Malformed reports whether the provider flagged the bar as incorrect.
func (b Bar) Malformed() bool {
	return b.TradeCount == InvalidTradeCount
}

// Bars is a series ordered by ascending epoch.
type Bars []Bar

// Last returns the newest bar of the series.
func (bs Bars) Last() (Bar, bool) {
	if len(bs) == 0 {
		return Bar{}, false
	}
	return bs[len(bs)-1], true
}

// Ascending reports whether the epochs are strictly increasing.
func (bs Bars) Ascending() bool {
	for i := 1; i < len(bs); i++ {
		if bs[i-1].EpochSec >= bs[i].EpochSec {
			return false
		}
	}
	return true
}
