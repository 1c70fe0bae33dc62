package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source. Now returns the time elapsed since an
// arbitrary fixed origin, so differences between two readings are always
// non-negative.
type Clock interface {
	Now() time.Duration
}

// Monotonic reads the runtime's monotonic clock.
type Monotonic struct {
	origin time.Time
}

// New returns a Monotonic clock anchored at the current instant.
func New() *Monotonic {
	return &Monotonic{origin: time.Now()}
}

func (m *Monotonic) Now() time.Duration {
	// time.Since uses the monotonic reading embedded in origin.
	return time.Since(m.origin)
}

// Manual is a Clock that only moves when Advance is called. Kernels under
// test advance it to simulate their own cost.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManual returns a Manual clock at zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative values are ignored.
func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

// Overhead estimates what timing an empty region costs: the mean of
// c.Now() - t0 taken immediately after t0 := c.Now(). It is the lowest mean
// over a few rounds, so a preempted round does not inflate it. A clock
// that never moves reports zero.
func Overhead(c Clock) time.Duration {
	const rounds = 5
	const pairs = 1 << 12

	best := time.Duration(-1)
	for range rounds {
		var total time.Duration
		for range pairs {
			t0 := c.Now()
			total += c.Now() - t0
		}
		if mean := total / pairs; best < 0 || mean < best {
			best = mean
		}
	}
	return best
}
