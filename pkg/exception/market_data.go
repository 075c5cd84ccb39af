package exception

import "errors"

var (
	ErrInvalidSubscribeRequest = errors.New("market data: invalid subscribe request")
	ErrNilHandler              = errors.New("market data: nil handler")
	ErrNilProvider             = errors.New("market data: nil provider")
)
