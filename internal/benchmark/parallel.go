package benchmark

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"microbench/internal/affinity"
	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

// runParallel runs cells on up to cfg.Parallelism goroutines, each locked
// to its own OS thread and pinned to a distinct CPU where the platform
// allows it. Results land at their enumeration index.
func (e *Engine) runParallel(ctx context.Context, cells []matrix.Cell, factories []kernel.Factory) []Result {
	allowed, err := affinity.Current()
	if err != nil {
		allowed = nil
	}
	workers := parallelWorkers(e.cfg.Parallelism, len(allowed))
	if workers < e.cfg.Parallelism {
		e.logger.Warn("parallelism capped at the cpus available for pinning",
			"requested", e.cfg.Parallelism, "cpus", len(allowed))
	}

	results := make([]Result, len(cells))
	slots := newSlotPool(workers)

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, cell := range cells {
		g.Go(func() error {
			// Never unlocked: the pinned thread exits with the goroutine
			// instead of returning to the scheduler with a narrowed mask.
			runtime.LockOSThread()

			slot := slots.acquire()
			defer slots.release(slot)
			if err := affinity.Pin(cpuFor(allowed, slot)); err != nil && !errors.Is(err, affinity.ErrUnsupported) {
				e.logger.Warn("cpu pinning failed", "cell", cell.Name(), "error", err)
			}

			e.started(cell.Name(), i, len(cells))
			res := e.RunCell(ctx, cell, factories[i])
			e.finished(res, i, len(cells))
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// parallelWorkers caps requested at cpus so that no two pinned cells share
// a CPU. Zero cpus means the set is unknown and nothing is capped.
func parallelWorkers(requested, cpus int) int {
	if cpus > 0 && requested > cpus {
		return cpus
	}
	return requested
}

// cpuFor maps a worker slot onto the allowed CPU set. Slots stay below
// len(allowed) once the worker count is capped.
func cpuFor(allowed []int, slot int) int {
	if len(allowed) == 0 {
		return affinity.CPUFor(slot)
	}
	return allowed[slot%len(allowed)]
}

// slotPool hands out the lowest free worker slot so that concurrently
// running cells never share a CPU.
type slotPool struct {
	mu   sync.Mutex
	used []bool
}

func newSlotPool(n int) *slotPool {
	return &slotPool{used: make([]bool, n)}
}

func (p *slotPool) acquire() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, busy := range p.used {
		if !busy {
			p.used[i] = true
			return i
		}
	}
	// SetLimit keeps callers at or below len(used).
	p.used = append(p.used, true)
	return len(p.used) - 1
}

func (p *slotPool) release(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.used[i] = false
}
