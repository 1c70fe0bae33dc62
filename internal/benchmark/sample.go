package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"microbench/internal/clock"
	"microbench/internal/kernel"
)

// SampleSet is the ordered sequence of per-call durations, in
// nanoseconds, one per timed batch. It is immutable once built.
type SampleSet struct {
	cell       string
	iterations int64
	perCall    []float64
}

// NewSampleSet copies perCall into a new SampleSet.
func NewSampleSet(cell string, iterations int64, perCall []float64) SampleSet {
	values := make([]float64, len(perCall))
	copy(values, perCall)
	return SampleSet{cell: cell, iterations: iterations, perCall: values}
}

// Cell is the name of the cell the samples belong to.
func (s SampleSet) Cell() string { return s.cell }

// Iterations is the calibrated batch size every sample was taken with.
func (s SampleSet) Iterations() int64 { return s.iterations }

// Len is the number of samples.
func (s SampleSet) Len() int { return len(s.perCall) }

// Values returns a copy of the per-call durations in nanoseconds.
func (s SampleSet) Values() []float64 {
	out := make([]float64, len(s.perCall))
	copy(out, s.perCall)
	return out
}

// Sampler runs calibrated batches and records one duration per batch.
type Sampler struct {
	Clock  clock.Clock
	Count  int
	Logger *slog.Logger

	// Overhead is the clock cost charged to each call that is timed on its
	// own. Measured with clock.Overhead on first use when zero.
	Overhead time.Duration

	overheadOnce sync.Once
}

func (s *Sampler) readCost() time.Duration {
	s.overheadOnce.Do(func() {
		if s.Overhead == 0 {
			s.Overhead = clock.Overhead(s.Clock)
		}
	})
	return s.Overhead
}

// Sample runs s.Count batches of n calls each. The context is consulted
// between batches only; a batch in flight always completes.
func (s *Sampler) Sample(ctx context.Context, cell string, k *kernel.Kernel, n int64) (SampleSet, error) {
	if n < 1 {
		return SampleSet{}, fmt.Errorf("cell %s: iteration count must be positive, got %d", cell, n)
	}

	var overhead time.Duration
	if timesEachCall(k) {
		overhead = s.readCost()
	}

	perCall := make([]float64, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		if err := ctx.Err(); err != nil {
			return SampleSet{}, budgetError(err)
		}
		elapsed, err := runBatch(s.Clock, k, n, overhead)
		if err != nil {
			return SampleSet{}, &AbortedError{Cell: cell, Phase: "sampling", Err: err}
		}
		perCall = append(perCall, float64(elapsed)/float64(n))
	}

	if s.Logger != nil {
		s.Logger.Debug("sampled cell", "cell", cell, "batches", len(perCall), "iterations", n, "clock_overhead", overhead)
	}
	return SampleSet{cell: cell, iterations: n, perCall: perCall}, nil
}

// timesEachCall reports whether k's reset must stay outside the timed
// region, forcing the clock to be read around every call.
func timesEachCall(k *kernel.Kernel) bool {
	return k.Reset != nil && !k.ResetTimed
}

// runBatch times n calls of k and returns the elapsed time attributed to
// them. When calls are timed one by one, overhead is taken off each call,
// and the batch total never drops below zero. Every call's observation is
// folded into an accumulator that is published once the batch ends.
func runBatch(c clock.Clock, k *kernel.Kernel, n int64, overhead time.Duration) (elapsed time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	var acc uint64
	run := k.Run

	switch {
	case k.Reset == nil:
		start := c.Now()
		for i := int64(0); i < n; i++ {
			v, callErr := run()
			if callErr != nil {
				return c.Now() - start, callErr
			}
			acc += v
		}
		elapsed = c.Now() - start

	case k.ResetTimed:
		reset := k.Reset
		start := c.Now()
		for i := int64(0); i < n; i++ {
			reset()
			v, callErr := run()
			if callErr != nil {
				return c.Now() - start, callErr
			}
			acc += v
		}
		elapsed = c.Now() - start

	default:
		// Untimed reset: the clock is read around every call so the reset
		// stays outside the measurement.
		reset := k.Reset
		for i := int64(0); i < n; i++ {
			reset()
			t0 := c.Now()
			v, callErr := run()
			elapsed += c.Now() - t0
			if callErr != nil {
				return elapsed, callErr
			}
			acc += v
		}
		elapsed = max(elapsed-time.Duration(n)*overhead, 0)
	}

	kernel.Publish(acc)
	return elapsed, nil
}

// budgetError maps a context error to ErrBudgetExhausted when the deadline
// expired, keeping plain cancellation distinguishable.
func budgetError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBudgetExhausted, err)
	}
	return err
}
