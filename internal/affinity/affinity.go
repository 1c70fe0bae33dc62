// Package affinity pins the calling OS thread to one CPU.
package affinity

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned where thread pinning is not available.
var ErrUnsupported = errors.New("cpu affinity is not supported on this platform")

// CPUFor maps a worker slot to a CPU index, wrapping around when there
// are more slots than CPUs.
func CPUFor(slot int) int {
	n := runtime.NumCPU()
	if slot < 0 {
		slot = -slot
	}
	return slot % n
}
