package exception

import "errors"

var (
	ErrConfigInvalid = errors.New("config: invalid")
	ErrReplayDecode  = errors.New("replay: decode line")
	ErrReplayUnknown = errors.New("replay: unknown event kind")
)
