package affinity

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUFor(t *testing.T) {
	n := runtime.NumCPU()
	assert.Equal(t, 0, CPUFor(0))
	assert.Equal(t, 0, CPUFor(n))
	assert.Equal(t, 1%n, CPUFor(n+1))
	assert.GreaterOrEqual(t, CPUFor(-3), 0)
}

func TestPinCurrentThread(t *testing.T) {
	done := make(chan struct{})
	var pinErr, readErr error
	var cpus []int

	// The thread is never unlocked so its affinity dies with the goroutine.
	go func() {
		defer close(done)
		runtime.LockOSThread()
		allowed, err := Current()
		if err != nil {
			readErr = err
			return
		}
		pinErr = Pin(allowed[0])
		cpus, readErr = Current()
	}()
	<-done

	if errors.Is(readErr, ErrUnsupported) {
		t.Skip("affinity not supported")
	}
	require.NoError(t, readErr)
	require.NoError(t, pinErr)
	assert.Len(t, cpus, 1)
}
