package dsm

import (
	"sync/atomic"
	"time"
)

// stampClock issues strictly increasing Unix-nanosecond write stamps and
// never falls behind a stamp it has observed from a peer.
type stampClock struct {
	last atomic.Int64
}

func (c *stampClock) Next() int64 {
	for {
		last := c.last.Load()
		now := time.Now().UnixNano()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}

func (c *stampClock) Observe(ts int64) {
	for {
		last := c.last.Load()
		if ts <= last || c.last.CompareAndSwap(last, ts) {
			return
		}
	}
}
