package model

import "strconv"

// RequestID is the correlation id attached to every upstream request and to
// every callback answering it.
type RequestID int64

func (id RequestID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether the id could have been issued by an allocator.
func (id RequestID) Valid() bool {
	return id >= 0
}
