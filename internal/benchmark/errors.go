package benchmark

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSamples indicates that a sample set is empty.
	ErrNoSamples = errors.New("no samples collected")

	// ErrInvalidConfig indicates an invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")

	// ErrBudgetExhausted indicates the run's total time budget ran out
	// before a cell could complete.
	ErrBudgetExhausted = errors.New("time budget exhausted")
)

// CalibrationTimeoutError reports a kernel too cheap to measure: the
// iteration cap or calibration budget was reached before a batch lasted
// the minimum interval. It is a reportable outcome, not a crash.
type CalibrationTimeoutError struct {
	Cell       string
	Iterations int64
	Elapsed    time.Duration // duration of the longest batch observed
	Spent      time.Duration // total calibration time
	Limit      string        // "iterations" or "budget"
}

func (e *CalibrationTimeoutError) Error() string {
	return fmt.Sprintf("cell %s: calibration hit the %s limit after %d iterations (batch %v, spent %v)",
		e.Cell, e.Limit, e.Iterations, e.Elapsed, e.Spent)
}

// AbortedError reports a kernel that failed while the engine was running
// it. Phase is one of "factory", "setup", "calibration" or "sampling".
type AbortedError struct {
	Cell  string
	Phase string
	Err   error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("benchmark aborted: cell %s during %s: %v", e.Cell, e.Phase, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }

// PanicError carries a recovered kernel panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("kernel panicked: %v", e.Value)
}

// IsAborted reports whether err is, or wraps, an AbortedError.
func IsAborted(err error) bool {
	var aborted *AbortedError
	return errors.As(err, &aborted)
}
