package pxdata

import (
	"sync/atomic"

	"pxfeed/internal/model"
)

// Allocator issues strictly increasing request ids starting from 0.
type Allocator struct {
	next atomic.Int64
}

// Next returns a fresh id. Safe for concurrent use.
func (a *Allocator) Next() model.RequestID {
	return model.RequestID(a.next.Add(1) - 1)
}
