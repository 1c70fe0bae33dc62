package workload

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

// Container operations.
const (
	OpInsert      = "Insert"
	OpIterate     = "Iterate"
	OpCopy        = "Copy"
	OpClearRefill = "ClearRefill"
)

var (
	containerOps      = []string{OpInsert, OpIterate, OpCopy, OpClearRefill}
	containerElements = []string{"Small", "Point", "Large"}
	containerSizes    = []string{"8", "64", "1024"}
)

func init() {
	mustRegister(Suite{
		Name:        "containers",
		Description: "insert, iterate, copy and clear+refill across container backends, element sizes and lengths",
		Build:       buildContainers,
	})
}

// buildContainers declares the backend last so the markdown summary puts
// backends side by side.
func buildContainers(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(
		axis("operation", containerOps...),
		axis("element", containerElements...),
		axis("size", containerSizes...),
		axis("backend", BackendKinds...),
	)
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		size, err := strconv.Atoi(c.Value("size"))
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", c.Value("size"), err)
		}
		op, kind := c.Value("operation"), c.Value("backend")
		// Every operation and backend sees the same data for a given
		// element and size.
		stream := uint64(size)<<8 | uint64(slices.Index(containerElements, c.Value("element")))

		switch c.Value("element") {
		case "Small":
			return containerKernel(op, kind, size, func() []Small {
				return makeData(newRand(seed, stream), size, func(r *rand.Rand) Small { return Small(r.Uint32()) })
			})
		case "Point":
			return containerKernel(op, kind, size, func() []Point {
				return makeData(newRand(seed, stream), size, func(r *rand.Rand) Point {
					return Point{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}
				})
			})
		case "Large":
			return containerKernel(op, kind, size, func() []Large {
				return makeData(newRand(seed, stream), size, func(r *rand.Rand) Large {
					var l Large
					for i := range l.Words {
						l.Words[i] = r.Uint64()
					}
					return l
				})
			})
		}
		return nil, fmt.Errorf("unknown element %q", c.Value("element"))
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func makeData[T any](r *rand.Rand, n int, gen func(*rand.Rand) T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = gen(r)
	}
	return out
}

type containerState[T Element] struct {
	c    Backend[T]
	data []T
}

func (s *containerState[T]) fill() {
	for _, v := range s.data {
		s.c.Push(v)
	}
}

// containerKernel binds one operation on one backend. Data generation and
// the initial fill happen in setup.
func containerKernel[T Element](op, kind string, size int, data func() []T) (kernel.Factory, error) {
	if _, err := NewBackend[T](kind, size); err != nil {
		return nil, err
	}
	setup := func(filled bool) func() (*containerState[T], error) {
		return func() (*containerState[T], error) {
			c, err := NewBackend[T](kind, size)
			if err != nil {
				return nil, err
			}
			s := &containerState[T]{c: c, data: data()}
			if filled {
				s.fill()
			}
			return s, nil
		}
	}
	length := func(s *containerState[T]) uint64 { return uint64(s.c.Len()) }

	switch op {
	case OpInsert:
		// Each call inserts into a fresh, empty container; allocating it is
		// not part of the measurement.
		return kernel.Stateful(kernel.StatefulSpec[*containerState[T]]{
			Setup: setup(false),
			Reset: func(s *containerState[T]) {
				s.c, _ = NewBackend[T](kind, size)
			},
			Run: func(s *containerState[T]) (uint64, error) {
				s.fill()
				return length(s), nil
			},
		}), nil

	case OpIterate:
		return kernel.Stateful(kernel.StatefulSpec[*containerState[T]]{
			Setup: setup(true),
			Run: func(s *containerState[T]) (uint64, error) {
				var acc uint64
				s.c.Iterate(func(v T) { acc += v.Key() })
				return acc, nil
			},
		}), nil

	case OpCopy:
		return kernel.Stateful(kernel.StatefulSpec[*containerState[T]]{
			Setup: setup(true),
			Run: func(s *containerState[T]) (uint64, error) {
				return uint64(s.c.Copy().Len()), nil
			},
		}), nil

	case OpClearRefill:
		// Clearing is half of the measured operation.
		return kernel.Stateful(kernel.StatefulSpec[*containerState[T]]{
			Setup:      setup(true),
			Reset:      func(s *containerState[T]) { s.c.Clear() },
			ResetTimed: true,
			Run: func(s *containerState[T]) (uint64, error) {
				s.fill()
				return length(s), nil
			},
		}), nil
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}
