package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"microbench/internal/clock"
	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

// Runner executes cells of a matrix and produces one Result per cell.
type Runner interface {
	RunCell(ctx context.Context, cell matrix.Cell, factory kernel.Factory) Result
	Run(ctx context.Context, m *matrix.Matrix, sel *matrix.Selector) ([]Result, error)
}

// Observer is notified as cells start and finish. Implementations must be
// safe for concurrent use when the engine runs in parallel mode.
type Observer interface {
	CellStarted(cell string, index, total int)
	CellFinished(result Result, index, total int)
}

// Engine is the default Runner: calibrate, sample, aggregate.
type Engine struct {
	cfg        Config
	clock      clock.Clock
	calibrator *Calibrator
	sampler    *Sampler
	aggregator Aggregator
	cache      *CalibrationCache
	scope      string
	logger     *slog.Logger
	observers  []Observer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the monotonic clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithCache shares a calibration cache between engines or runs.
func WithCache(c *CalibrationCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithScope names the matrix the engine runs, usually the suite. Cells of
// different scopes never share cached calibrations.
func WithScope(scope string) Option {
	return func(e *Engine) { e.scope = scope }
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		clock:      clock.New(),
		aggregator: cfg.Aggregator(),
		cache:      NewCalibrationCache(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	overhead := clock.Overhead(e.clock)
	e.calibrator = NewCalibrator(e.clock, cfg, e.logger)
	e.calibrator.Overhead = overhead
	e.sampler = &Sampler{Clock: e.clock, Count: cfg.SampleCount, Logger: e.logger, Overhead: overhead}
	e.logger.Debug("engine ready", "scope", e.scope, "clock_overhead", overhead, "parallelism", cfg.Parallelism)
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Cache returns the calibration cache.
func (e *Engine) Cache() *CalibrationCache { return e.cache }

// CacheKey is the key under which the engine caches cell's calibration.
func (e *Engine) CacheKey(cell string) CacheKey {
	return CacheKey{
		Scope:       e.scope,
		Cell:        cell,
		MinInterval: e.cfg.MinInterval,
		Growth:      e.cfg.GrowthFactor,
	}
}

// RunCell runs one cell to completion. Failures are recorded on the
// Result rather than returned, so callers can continue with the next cell.
func (e *Engine) RunCell(ctx context.Context, cell matrix.Cell, factory kernel.Factory) Result {
	start := time.Now()
	res := e.runCell(ctx, cell, factory)
	res.Name = cell.Name()
	res.Values = cell.Values()
	res.Wall = time.Since(start)
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	switch {
	case res.Status == StatusOK && !res.Stable:
		e.logger.Warn("cell unstable", "cell", res.Name, "warning", res.Warning.String())
	case res.Status == StatusOK:
		e.logger.Info("cell complete", "cell", res.Name, "ns_per_op", res.NsPerOp(), "cv", res.Stats.CV)
	case res.Status == StatusCalibrationTimeout:
		e.logger.Warn("cell not measurable", "cell", res.Name, "error", res.Err)
	default:
		e.logger.Error("cell failed", "cell", res.Name, "status", string(res.Status), "error", res.Err)
	}
	return res
}

func (e *Engine) runCell(ctx context.Context, cell matrix.Cell, factory kernel.Factory) Result {
	name := cell.Name()
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusCanceled, Err: budgetError(err)}
	}

	k, err := buildKernel(factory)
	if err == nil {
		err = k.Validate()
	}
	if err != nil {
		return aborted(name, "factory", err)
	}

	if k.Setup != nil {
		if err := callSetup(k.Setup); err != nil {
			return aborted(name, "setup", err)
		}
	}
	if k.Teardown != nil {
		defer e.teardown(name, k.Teardown)
	}

	key := e.CacheKey(name)
	cal, cached := e.cache.Get(key)
	if !cached {
		cal, err = e.calibrator.Calibrate(ctx, name, k)
		if err != nil {
			return failure(err)
		}
		e.cache.Put(key, cal)
	}

	samples, err := e.sampler.Sample(ctx, name, k, cal.Iterations)
	if err != nil {
		return failure(err)
	}

	stats, warning, err := e.aggregator.Aggregate(samples)
	if err != nil {
		return failure(err)
	}
	return Result{
		Status:      StatusOK,
		Calibration: &cal,
		Stats:       &stats,
		Stable:      warning == nil,
		Warning:     warning,
	}
}

// Run validates m and executes every selected cell in enumeration order.
// Matrix errors are returned before anything is timed; cell failures are
// recorded in the results.
func (e *Engine) Run(ctx context.Context, m *matrix.Matrix, sel *matrix.Selector) ([]Result, error) {
	cells, factories, err := Plan(m, sel)
	if err != nil {
		return nil, err
	}

	if e.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TimeBudget)
		defer cancel()
	}

	if e.cfg.Parallelism > 1 {
		return e.runParallel(ctx, cells, factories), nil
	}

	results := make([]Result, 0, len(cells))
	for i, cell := range cells {
		e.started(cell.Name(), i, len(cells))
		res := e.RunCell(ctx, cell, factories[i])
		e.finished(res, i, len(cells))
		results = append(results, res)
	}
	return results, nil
}

// Plan validates m and resolves the selected cells in order.
func Plan(m *matrix.Matrix, sel *matrix.Selector) ([]matrix.Cell, []kernel.Factory, error) {
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	var cells []matrix.Cell
	var factories []kernel.Factory
	for cell := range m.Cells() {
		if !sel.Matches(cell) {
			continue
		}
		f, err := m.Resolve(cell)
		if err != nil {
			return nil, nil, err
		}
		cells = append(cells, cell)
		factories = append(factories, f)
	}
	return cells, factories, nil
}

func (e *Engine) started(cell string, index, total int) {
	for _, o := range e.observers {
		o.CellStarted(cell, index, total)
	}
}

func (e *Engine) finished(res Result, index, total int) {
	for _, o := range e.observers {
		o.CellFinished(res, index, total)
	}
}

func buildKernel(factory kernel.Factory) (k *kernel.Kernel, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return factory()
}

func callSetup(setup func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return setup()
}

// teardown never turns a measured cell into a failure; a panic is logged.
func (e *Engine) teardown(cell string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("teardown panicked", "cell", cell, "panic", r)
		}
	}()
	fn()
}

func aborted(cell, phase string, err error) Result {
	return Result{Status: StatusAborted, Err: &AbortedError{Cell: cell, Phase: phase, Err: err}}
}

func failure(err error) Result {
	var timeout *CalibrationTimeoutError
	switch {
	case errors.As(err, &timeout):
		return Result{Status: StatusCalibrationTimeout, Err: err}
	case IsAborted(err):
		return Result{Status: StatusAborted, Err: err}
	case errors.Is(err, ErrBudgetExhausted), errors.Is(err, context.Canceled):
		return Result{Status: StatusCanceled, Err: err}
	default:
		return Result{Status: StatusAborted, Err: fmt.Errorf("unexpected engine failure: %w", err)}
	}
}
