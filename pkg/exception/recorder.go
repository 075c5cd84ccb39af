package exception

import "errors"

var (
	ErrRecorderQueueFull  = errors.New("recorder: queue full")
	ErrRecorderClosed     = errors.New("recorder: closed")
	ErrRecorderNotStarted = errors.New("recorder: not started")
	ErrRecorderStarted    = errors.New("recorder: already started")
)
