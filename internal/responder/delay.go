package responder

import (
	"math/rand/v2"
	"time"
)

// NextDelay returns a uniformly random whole number of seconds in the
// closed interval [min, max]. Bounds that are not whole seconds are rounded
// inward; if nothing remains, min is returned.
func NextDelay(min, max time.Duration) time.Duration {
	lo := int64((min + time.Second - 1) / time.Second)
	hi := int64(max / time.Second)
	if hi < lo {
		return min
	}
	return time.Duration(lo+rand.Int64N(hi-lo+1)) * time.Second
}
