package dispatch

import (
	"strings"

	"pxfeed/pkg/exception"

	"github.com/yanun0323/errors"
)

// OverflowPolicy defines queue behavior when full.
type OverflowPolicy uint8

// The zero value drops the oldest item, so a zero Config never stalls the
// submitting goroutine.
const (
	// OverflowDropOldest drops the oldest item to make room.
	OverflowDropOldest OverflowPolicy = iota
	// OverflowDropNewest drops the incoming item if the queue is full.
	OverflowDropNewest
	// OverflowBlock blocks until space is available.
	OverflowBlock
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowDropNewest:
		return "drop_newest"
	case OverflowDropOldest:
		return "drop_oldest"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy maps a config value to a policy. Empty means drop_oldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_oldest":
		return OverflowDropOldest, nil
	case "drop_newest":
		return OverflowDropNewest, nil
	case "block":
		return OverflowBlock, nil
	default:
		return 0, errors.Wrapf(exception.ErrDispatchInvalidPolicy, "policy: %s", s)
	}
}

// UnmarshalText lets the policy be read straight from config files.
func (p *OverflowPolicy) UnmarshalText(text []byte) error {
	policy, err := ParseOverflowPolicy(string(text))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}
