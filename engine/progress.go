package engine

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ProgressFunc receives coarse progress updates during a run. Callbacks are
// dispatched on their own goroutine and rate limited, so implementations may
// do slow things (RPC status updates, UI refreshes) without stalling the
// engine.
type ProgressFunc func(phase Phase, processed, total int)

// progressReporter throttles callback delivery. Two gates apply: a stride
// (only every strideth entity is considered) and a token bucket capping the
// wall-clock callback frequency. The final update always goes through so
// observers see 100%.
type progressReporter struct {
	fn      ProgressFunc
	phase   Phase
	total   int
	stride  int
	limiter *rate.Limiter
}

func newProgressReporter(fn ProgressFunc, phase Phase, total, stride int) *progressReporter {
	if stride < 1 {
		stride = 1
	}
	return &progressReporter{
		fn:      fn,
		phase:   phase,
		total:   total,
		stride:  stride,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// step reports that processed entities are done so far.
func (p *progressReporter) step(processed int) {
	if p == nil || p.fn == nil {
		return
	}
	if processed < p.total && processed%p.stride != 0 {
		return
	}
	if processed < p.total && !p.limiter.Allow() {
		return
	}
	go p.fn(p.phase, processed, p.total)
}

// atomicCounter accumulates progress across prefilter workers.
type atomicCounter struct {
	n atomic.Int64
}

func (c *atomicCounter) add(delta int) int {
	return int(c.n.Add(int64(delta)))
}
