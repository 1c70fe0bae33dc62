package benchmark

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"microbench/internal/clock"
	"microbench/internal/kernel"
)

// Calibration is the batch size chosen for one cell.
type Calibration struct {
	Iterations int64         `json:"iterations"`
	PerCall    float64       `json:"per_call_ns"`
	Elapsed    time.Duration `json:"elapsed"`
	Rounds     int           `json:"rounds"`
}

// Calibrator grows the batch size until one timed batch lasts at least
// MinInterval.
type Calibrator struct {
	Clock         clock.Clock
	MinInterval   time.Duration
	Growth        int64
	MaxIterations int64
	Budget        time.Duration
	Logger        *slog.Logger

	// Overhead is the clock cost charged to each call that is timed on its
	// own. Measured with clock.Overhead on first use when zero.
	Overhead time.Duration

	overheadOnce sync.Once
}

// NewCalibrator builds a Calibrator from cfg.
func NewCalibrator(c clock.Clock, cfg Config, logger *slog.Logger) *Calibrator {
	return &Calibrator{
		Clock:         c,
		MinInterval:   cfg.MinInterval,
		Growth:        cfg.GrowthFactor,
		MaxIterations: cfg.MaxIterations,
		Budget:        cfg.CalibrationBudget,
		Logger:        logger,
	}
}

// Calibrate starts at one iteration and multiplies by Growth while the
// batch is shorter than MinInterval. A kernel whose single call already
// lasts MinInterval is accepted after the first round. Reaching
// MaxIterations or spending Budget first yields a CalibrationTimeoutError.
// Setup is the caller's job and never runs inside a batch.
func (c *Calibrator) Calibrate(ctx context.Context, cell string, k *kernel.Kernel) (Calibration, error) {
	var overhead time.Duration
	if timesEachCall(k) {
		overhead = c.readCost()
	}

	start := c.Clock.Now()
	var longest time.Duration

	n := int64(1)
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return Calibration{}, budgetError(err)
		}

		elapsed, err := runBatch(c.Clock, k, n, overhead)
		if err != nil {
			return Calibration{}, &AbortedError{Cell: cell, Phase: "calibration", Err: err}
		}
		if elapsed > longest {
			longest = elapsed
		}
		if c.Logger != nil {
			c.Logger.Debug("calibration round", "cell", cell, "round", round, "iterations", n, "elapsed", elapsed)
		}

		if elapsed >= c.MinInterval {
			return Calibration{
				Iterations: n,
				PerCall:    float64(elapsed) / float64(n),
				Elapsed:    elapsed,
				Rounds:     round,
			}, nil
		}

		spent := c.Clock.Now() - start
		if n >= c.MaxIterations {
			return Calibration{}, &CalibrationTimeoutError{
				Cell: cell, Iterations: n, Elapsed: longest, Spent: spent, Limit: "iterations",
			}
		}
		if spent >= c.Budget {
			return Calibration{}, &CalibrationTimeoutError{
				Cell: cell, Iterations: n, Elapsed: longest, Spent: spent, Limit: "budget",
			}
		}
		n = c.next(n)
	}
}

func (c *Calibrator) readCost() time.Duration {
	c.overheadOnce.Do(func() {
		if c.Overhead == 0 {
			c.Overhead = clock.Overhead(c.Clock)
		}
	})
	return c.Overhead
}

func (c *Calibrator) next(n int64) int64 {
	if n > c.MaxIterations/c.Growth {
		return c.MaxIterations
	}
	return n * c.Growth
}

// CacheKey identifies a cached calibration. A batch size is only valid
// for the matrix and calibration settings it was found with.
type CacheKey struct {
	Scope       string
	Cell        string
	MinInterval time.Duration
	Growth      int64
}

// CalibrationCache keeps one Calibration per key for the lifetime of the
// cache. Entries change only through Put and Invalidate.
type CalibrationCache struct {
	mu      sync.Mutex
	entries map[CacheKey]Calibration
}

// NewCalibrationCache returns an empty cache.
func NewCalibrationCache() *CalibrationCache {
	return &CalibrationCache{entries: make(map[CacheKey]Calibration)}
}

func (c *CalibrationCache) Get(key CacheKey) (Calibration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cal, ok := c.entries[key]
	return cal, ok
}

func (c *CalibrationCache) Put(key CacheKey, cal Calibration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cal
}

// Invalidate drops the entry for key so the next run recalibrates it.
func (c *CalibrationCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len is the number of cached entries.
func (c *CalibrationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
