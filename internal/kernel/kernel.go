// Package kernel defines the unit of work the benchmark engine times.
//
// A Kernel is opaque to the engine: it is a function returning a uint64
// "observation" plus optional setup and reset hooks. Kernels that hold
// mutable state (a container being filled, a buffer being swapped) are
// produced by a Factory so every cell gets a freshly allocated instance.
package kernel

import (
	"errors"
	"sync/atomic"
)

// ErrNoBody is returned by Validate when a kernel has no Run function.
var ErrNoBody = errors.New("kernel has no run function")

// Func is one timed call. The returned value must depend on the work done
// (a sum, a length, an element) so that the engine can feed it through the
// sink barrier; returning a constant lets the compiler prove the body dead.
type Func func() (uint64, error)

// Kernel bundles the timed body with its lifecycle hooks.
type Kernel struct {
	// Setup runs once before any timed batch. Optional.
	Setup func() error

	// Run is the timed body. Required.
	Run Func

	// Reset runs before every call to Run. Optional.
	Reset func()

	// ResetTimed places Reset inside the timed region. Set it when the
	// reset is part of the operation being measured (clear+refill); leave
	// it false when the reset only restores preconditions.
	ResetTimed bool

	// Teardown runs once after sampling, even when sampling failed. Optional.
	Teardown func()
}

// Factory produces a fresh Kernel instance.
type Factory func() (*Kernel, error)

// Validate reports whether k can be executed.
func (k *Kernel) Validate() error {
	if k == nil || k.Run == nil {
		return ErrNoBody
	}
	return nil
}

// Void adapts a function without a result. The call itself is still made
// through a function value, which the compiler cannot inline away, but
// prefer returning an observation whenever the body computes one.
func Void(f func()) Func {
	return func() (uint64, error) {
		f()
		return 0, nil
	}
}

// Pure adapts an infallible function returning an observation.
func Pure(f func() uint64) Func {
	return func() (uint64, error) {
		return f(), nil
	}
}

// Simple returns a Factory for a stateless body.
func Simple(run Func) Factory {
	return func() (*Kernel, error) {
		return &Kernel{Run: run}, nil
	}
}

// StatefulSpec describes a kernel threading a state value of type S.
type StatefulSpec[S any] struct {
	Setup      func() (S, error)
	Run        func(S) (uint64, error)
	Reset      func(S)
	ResetTimed bool
	Teardown   func(S)
}

// Stateful builds a Factory whose instances own one S created by
// spec.Setup. Each Factory call yields an independent state.
func Stateful[S any](spec StatefulSpec[S]) Factory {
	return func() (*Kernel, error) {
		if spec.Run == nil {
			return nil, ErrNoBody
		}
		var state S
		k := &Kernel{
			Run:        func() (uint64, error) { return spec.Run(state) },
			ResetTimed: spec.ResetTimed,
		}
		if spec.Setup != nil {
			k.Setup = func() error {
				s, err := spec.Setup()
				if err != nil {
					return err
				}
				state = s
				return nil
			}
		}
		if spec.Reset != nil {
			k.Reset = func() { spec.Reset(state) }
		}
		if spec.Teardown != nil {
			k.Teardown = func() { spec.Teardown(state) }
		}
		return k, nil
	}
}

var sink atomic.Uint64

// Publish stores an accumulated observation in a package-level atomic.
// Atomic stores are visible side effects, so the values folded into v, and
// therefore the calls that produced them, cannot be eliminated.
func Publish(v uint64) {
	sink.Store(v)
}

// Observed returns the last published value.
func Observed() uint64 {
	return sink.Load()
}
