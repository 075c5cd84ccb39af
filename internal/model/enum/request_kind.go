package enum

// RequestKind tells which upstream request an id was issued for.
type RequestKind uint8

const (
	_request_beg RequestKind = iota
	RequestPriceSeries
	RequestContract
	RequestTickStream
	_request_end
)

func (k RequestKind) IsAvailable() bool {
	return k > _request_beg && k < _request_end
}

func (k RequestKind) String() string {
	switch k {
	case RequestPriceSeries:
		return "price_series"
	case RequestContract:
		return "contract"
	case RequestTickStream:
		return "tick_stream"
	default:
		return "unknown"
	}
}
