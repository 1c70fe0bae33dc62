package workload

import (
	"errors"
	"fmt"

	"microbench/internal/kernel"
	"microbench/internal/matrix"
)

const byteElements = 1 << 16

func init() {
	mustRegister(Suite{
		Name:        "dispatch",
		Description: "mirrored byte swaps through direct calls, interface methods and function values",
		Build:       buildDispatch,
	})
	mustRegister(Suite{
		Name:        "errors",
		Description: "parity-checked swaps reporting mismatches by return value, panic/recover or under a deferred no-op",
		Build:       buildErrors,
	})
	mustRegister(Suite{
		Name:        "inlining",
		Description: "the same small function inlined and behind a call boundary",
		Build:       buildInlining,
	})
}

func randomBytes(seed, stream uint64) []byte {
	r := newRand(seed, stream)
	out := make([]byte, byteElements)
	for i := range out {
		out[i] = byte(r.Uint32())
	}
	return out
}

type swapper interface {
	swap(a, b *byte)
}

type byteSwapper struct{}

func (byteSwapper) swap(a, b *byte) { *a, *b = *b, *a }

//go:noinline
func swapDirect(a, b *byte) { *a, *b = *b, *a }

func buildDispatch(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(axis("call", "direct", "interface", "funcvalue"))
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		var run func([]byte)
		switch c.Value("call") {
		case "direct":
			run = func(data []byte) {
				n := len(data)
				for i := 0; i < n/2; i++ {
					swapDirect(&data[i], &data[n-1-i])
				}
			}
		case "interface":
			var s swapper = byteSwapper{}
			run = func(data []byte) {
				n := len(data)
				for i := 0; i < n/2; i++ {
					s.swap(&data[i], &data[n-1-i])
				}
			}
		case "funcvalue":
			fn := swapDirect
			run = func(data []byte) {
				n := len(data)
				for i := 0; i < n/2; i++ {
					fn(&data[i], &data[n-1-i])
				}
			}
		default:
			return nil, fmt.Errorf("unknown call %q", c.Value("call"))
		}
		return kernel.Stateful(kernel.StatefulSpec[[]byte]{
			Setup: func() ([]byte, error) { return randomBytes(seed, 4), nil },
			Run: func(data []byte) (uint64, error) {
				run(data)
				return uint64(data[0]) | uint64(data[len(data)-1])<<8, nil
			},
		}), nil
	})
	return m, err
}

var errParity = errors.New("parity mismatch")

// swapSameParity swaps a and b when both are even or both are odd.
func swapSameParity(a, b *byte) error {
	if (*a^*b)&1 != 0 {
		return errParity
	}
	*a, *b = *b, *a
	return nil
}

func swapOrPanic(a, b *byte) {
	if err := swapSameParity(a, b); err != nil {
		panic(err)
	}
}

func swapRecovering(a, b *byte) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			failed = true
		}
	}()
	swapOrPanic(a, b)
	return false
}

func swapDeferred(a, b *byte) (failed bool) {
	defer func() {}()
	return swapSameParity(a, b) != nil
}

func buildErrors(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(axis("mechanism", "returncode", "panicrecover", "defer"))
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		var pair func(a, b *byte) bool
		switch c.Value("mechanism") {
		case "returncode":
			pair = func(a, b *byte) bool { return swapSameParity(a, b) != nil }
		case "panicrecover":
			pair = swapRecovering
		case "defer":
			pair = swapDeferred
		default:
			return nil, fmt.Errorf("unknown mechanism %q", c.Value("mechanism"))
		}
		return kernel.Stateful(kernel.StatefulSpec[[]byte]{
			Setup: func() ([]byte, error) { return randomBytes(seed, 5), nil },
			Run: func(data []byte) (uint64, error) {
				n := len(data)
				var failures uint64
				for i := 0; i < n/2; i++ {
					if pair(&data[i], &data[n-1-i]) {
						failures++
					}
				}
				return failures, nil
			},
		}), nil
	})
	return m, err
}

func addInline(a, b uint64) uint64 { return a + b }

//go:noinline
func addNoInline(a, b uint64) uint64 { return a + b }

func buildInlining(seed uint64) (*matrix.Matrix, error) {
	m, err := matrix.New(axis("call", "inlined", "noinline"))
	if err != nil {
		return nil, err
	}
	err = m.RegisterEach(func(c matrix.Cell) (kernel.Factory, error) {
		inline := c.Value("call") == "inlined"
		return kernel.Stateful(kernel.StatefulSpec[[]uint64]{
			Setup: func() ([]uint64, error) { return randomWords(newRand(seed, 6), ilpElements), nil },
			Run: func(data []uint64) (uint64, error) {
				var sum uint64
				if inline {
					for _, v := range data {
						sum = addInline(sum, v)
					}
				} else {
					for _, v := range data {
						sum = addNoInline(sum, v)
					}
				}
				return sum, nil
			},
		}), nil
	})
	return m, err
}
