package exception

import "errors"

// Dispatch errors
var (
	ErrDispatchQueueFull     = errors.New("dispatch: queue full")
	ErrDispatchClosed        = errors.New("dispatch: closed")
	ErrDispatchNotStarted    = errors.New("dispatch: not started")
	ErrDispatchStarted       = errors.New("dispatch: already started")
	ErrDispatchInvalidPolicy = errors.New("dispatch: invalid overflow policy")
)
