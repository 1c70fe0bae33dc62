// Package report collects benchmark results lazily and renders them.
package report

import (
	"context"
	"iter"
	"sync"
	"time"

	"microbench/internal/benchmark"
	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

// CellRunner runs one cell. *benchmark.Engine satisfies it.
type CellRunner interface {
	RunCell(ctx context.Context, cell matrix.Cell, factory kernel.Factory) benchmark.Result
	Config() benchmark.Config
}

// Report is an ordered, memoized sequence of results. Cells run the first
// time their record is requested; later iterations replay the stored
// results and resume where an interrupted iteration stopped.
type Report struct {
	runner    CellRunner
	cells     []matrix.Cell
	factories []kernel.Factory
	axes      []string

	mu        sync.Mutex
	results   []benchmark.Result
	deadline  time.Time
	observers []benchmark.Observer
}

// New validates m and prepares a Report over the cells sel selects.
// Nothing is timed until Records is iterated.
func New(runner CellRunner, m *matrix.Matrix, sel *matrix.Selector) (*Report, error) {
	cells, factories, err := benchmark.Plan(m, sel)
	if err != nil {
		return nil, err
	}
	return &Report{
		runner:    runner,
		cells:     cells,
		factories: factories,
		axes:      axisNames(m),
	}, nil
}

// FromResults wraps results that were already produced, for example by a
// parallel engine run or a stored run.
func FromResults(axes []string, results []benchmark.Result) *Report {
	r := &Report{axes: axes, results: make([]benchmark.Result, len(results))}
	copy(r.results, results)
	return r
}

// Observe registers observers notified around every cell the report runs.
// Replayed records are not reported again.
func (r *Report) Observe(obs ...benchmark.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs...)
}

// Axes returns the axis names in declaration order.
func (r *Report) Axes() []string {
	out := make([]string, len(r.axes))
	copy(out, r.axes)
	return out
}

// Len is the number of records the report will yield.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return max(len(r.cells), len(r.results))
}

// Records yields one result per cell in enumeration order. The run's time
// budget starts when the first cell is requested and is shared by every
// later iteration.
func (r *Report) Records(ctx context.Context) iter.Seq[benchmark.Result] {
	return func(yield func(benchmark.Result) bool) {
		for i := 0; ; i++ {
			res, ok := r.record(ctx, i)
			if !ok || !yield(res) {
				return
			}
		}
	}
}

// Results drains Records into a slice.
func (r *Report) Results(ctx context.Context) []benchmark.Result {
	var out []benchmark.Result
	for res := range r.Records(ctx) {
		out = append(out, res)
	}
	return out
}

func (r *Report) record(ctx context.Context, i int) (benchmark.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < len(r.results) {
		return r.results[i], true
	}
	if i >= len(r.cells) {
		return benchmark.Result{}, false
	}

	if budget := r.runner.Config().TimeBudget; budget > 0 {
		if r.deadline.IsZero() {
			r.deadline = time.Now().Add(budget)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, r.deadline)
		defer cancel()
	}

	total := len(r.cells)
	for _, o := range r.observers {
		o.CellStarted(r.cells[i].Name(), i, total)
	}
	res := r.runner.RunCell(ctx, r.cells[i], r.factories[i])
	r.results = append(r.results, res)
	for _, o := range r.observers {
		o.CellFinished(res, i, total)
	}
	return res, true
}

func axisNames(m *matrix.Matrix) []string {
	axes := m.Axes()
	names := make([]string, len(axes))
	for i, a := range axes {
		names[i] = a.Name
	}
	return names
}
