package benchmark

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbench/internal/clock"
	"microbench/internal/kernel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// costly returns a kernel whose every call advances clk by d.
func costly(clk *clock.Manual, d time.Duration) *kernel.Kernel {
	return &kernel.Kernel{Run: func() (uint64, error) {
		clk.Advance(d)
		return 1, nil
	}}
}

func testCalibrator(clk clock.Clock) *Calibrator {
	return &Calibrator{
		Clock:         clk,
		MinInterval:   100 * time.Microsecond,
		Growth:        8,
		MaxIterations: 1 << 32,
		Budget:        time.Second,
		Logger:        discardLogger(),
	}
}

func TestCalibrateSlowKernelSettlesAtOne(t *testing.T) {
	clk := clock.NewManual()
	c := testCalibrator(clk)

	cal, err := c.Calibrate(context.Background(), "slow", costly(clk, 10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cal.Iterations)
	assert.Equal(t, 1, cal.Rounds)
	assert.InDelta(t, float64(10*time.Millisecond), cal.PerCall, 1e-9)
}

func TestCalibrateGrowsGeometrically(t *testing.T) {
	clk := clock.NewManual()
	c := testCalibrator(clk)

	cal, err := c.Calibrate(context.Background(), "cheap", costly(clk, time.Microsecond))
	require.NoError(t, err)
	// 1, 8, 64 are too short; 512 calls take 512µs.
	assert.Equal(t, int64(512), cal.Iterations)
	assert.Equal(t, 4, cal.Rounds)
	assert.Equal(t, 512*time.Microsecond, cal.Elapsed)
	assert.InDelta(t, 1000.0, cal.PerCall, 1e-9)
}

func TestCalibrateNoOpTimesOutAtIterationCap(t *testing.T) {
	clk := clock.NewManual()
	c := testCalibrator(clk)
	c.MaxIterations = 100

	calls := 0
	k := &kernel.Kernel{Run: func() (uint64, error) { calls++; return 0, nil }}

	_, err := c.Calibrate(context.Background(), "noop", k)
	var timeout *CalibrationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "noop", timeout.Cell)
	assert.Equal(t, "iterations", timeout.Limit)
	// 1, 8, 64, then clamped to the cap.
	assert.Equal(t, int64(100), timeout.Iterations)
	assert.Equal(t, 1+8+64+100, calls)
}

func TestCalibrateTimesOutOnBudget(t *testing.T) {
	clk := clock.NewManual()
	c := testCalibrator(clk)
	c.MinInterval = time.Second
	c.Budget = 100 * time.Microsecond

	_, err := c.Calibrate(context.Background(), "cheap", costly(clk, time.Microsecond))
	var timeout *CalibrationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "budget", timeout.Limit)
	assert.Equal(t, int64(512), timeout.Iterations)
	assert.Equal(t, 512*time.Microsecond, timeout.Elapsed)
	assert.GreaterOrEqual(t, timeout.Spent, c.Budget)
}

func TestCalibrateNeverRunsSetup(t *testing.T) {
	clk := clock.NewManual()
	setups := 0
	k := costly(clk, time.Millisecond)
	k.Setup = func() error { setups++; return nil }

	_, err := testCalibrator(clk).Calibrate(context.Background(), "cell", k)
	require.NoError(t, err)
	assert.Zero(t, setups)
}

func TestCalibrateKernelFailure(t *testing.T) {
	boom := errors.New("boom")
	clk := clock.NewManual()

	k := &kernel.Kernel{Run: func() (uint64, error) { return 0, boom }}
	_, err := testCalibrator(clk).Calibrate(context.Background(), "bad", k)

	var aborted *AbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, "calibration", aborted.Phase)
	assert.Equal(t, "bad", aborted.Cell)
	assert.ErrorIs(t, err, boom)

	k = &kernel.Kernel{Run: func() (uint64, error) { panic("kaboom") }}
	_, err = testCalibrator(clk).Calibrate(context.Background(), "panics", k)
	var p *PanicError
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "kaboom", p.Value)
}

func TestCalibrateHonorsContext(t *testing.T) {
	clk := clock.NewManual()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testCalibrator(clk).Calibrate(ctx, "cell", costly(clk, time.Millisecond))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBudgetExhausted)

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = testCalibrator(clk).Calibrate(ctx, "cell", costly(clk, time.Millisecond))
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalibrationCache(t *testing.T) {
	cache := NewCalibrationCache()
	a := CacheKey{Scope: "containers", Cell: "a", MinInterval: time.Millisecond, Growth: 8}
	b := CacheKey{Scope: "containers", Cell: "b", MinInterval: time.Millisecond, Growth: 8}
	_, ok := cache.Get(a)
	assert.False(t, ok)

	cache.Put(a, Calibration{Iterations: 8})
	cache.Put(b, Calibration{Iterations: 64})
	cal, ok := cache.Get(a)
	require.True(t, ok)
	assert.Equal(t, int64(8), cal.Iterations)
	assert.Equal(t, 2, cache.Len())

	other := a
	other.Scope = "branch"
	_, ok = cache.Get(other)
	assert.False(t, ok)

	cache.Invalidate(a)
	_, ok = cache.Get(a)
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())
}

func TestCalibrateChargesOverheadToUntimedCalls(t *testing.T) {
	clk := clock.NewManual()
	c := testCalibrator(clk)
	c.Overhead = 900 * time.Nanosecond

	k := costly(clk, time.Microsecond)
	k.Reset = func() {}
	cal, err := c.Calibrate(context.Background(), "insert", k)
	require.NoError(t, err)
	// 100ns of kernel per call: 4096 calls are the first batch past 100µs.
	assert.Equal(t, int64(4096), cal.Iterations)
	assert.InDelta(t, 100.0, cal.PerCall, 1e-9)
}
