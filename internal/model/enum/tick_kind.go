package enum

// TickKind is the provider's tick type for a price tick.
// Values follow the upstream tick type table.
type TickKind uint16

const (
	TickBidSize  TickKind = 0
	TickBid      TickKind = 1
	TickAsk      TickKind = 2
	TickAskSize  TickKind = 3
	TickLast     TickKind = 4
	TickLastSize TickKind = 5
	TickHigh     TickKind = 6
	TickLow      TickKind = 7
	TickVolume   TickKind = 8
	TickClose    TickKind = 9
	TickOpen     TickKind = 14
)

var tickKindNames = map[TickKind]string{
	TickBidSize:  "BID_SIZE",
	TickBid:      "BID",
	TickAsk:      "ASK",
	TickAskSize:  "ASK_SIZE",
	TickLast:     "LAST",
	TickLastSize: "LAST_SIZE",
	TickHigh:     "HIGH",
	TickLow:      "LOW",
	TickVolume:   "VOLUME",
	TickClose:    "CLOSE",
	TickOpen:     "OPEN",
}

// IsLastTrade reports whether the tick carries the last trade price.
func (k TickKind) IsLastTrade() bool {
	return k == TickLast
}

func (k TickKind) String() string {
	if name, ok := tickKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseTickKind maps an upstream tick name back to its kind.
func ParseTickKind(name string) (TickKind, bool) {
	for k, n := range tickKindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}
