package compute

import (
	"errors"
	"sync"
)

var (
	// ErrOutOfMemory indicates an allocation that the device could not satisfy.
	ErrOutOfMemory = errors.New("compute: out of device memory")

	// ErrUnavailable indicates a backend that was not compiled in or found no device.
	ErrUnavailable = errors.New("compute: backend not available")
)

// Backend is the accelerator queue the simulator dispatches to. Buffers are
// float32, matching device precision. ParallelRows returns only after every
// row has been processed, so callers observe strictly ordered operations.
type Backend interface {
	Name() string
	Available() bool
	Alloc(n int) ([]float32, error)
	Free(buf []float32)
	ParallelRows(rows int, fn func(start, end int))
	Cleanup()
}

var (
	activeMu      sync.Mutex
	activeBackend Backend
)

func SetBackend(b Backend) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if activeBackend != nil && activeBackend != b {
		activeBackend.Cleanup()
	}
	activeBackend = b
}

// GetBackend returns the process-wide backend, selecting one on first use.
func GetBackend() Backend {
	activeMu.Lock()
	defer activeMu.Unlock()
	if activeBackend == nil {
		activeBackend = AutoSelectBackend()
	}
	return activeBackend
}

func AutoSelectBackend() Backend {
	if cl, err := NewOpenCLBackend(); err == nil && cl.Available() {
		return cl
	}
	return NewCPUBackend()
}

// Execution describes where cell loops actually run for b. The OpenCL
// backend only reserves device memory; arithmetic stays on host threads.
func Execution(b Backend) string {
	switch b.(type) {
	case *OpenCLBackend:
		return "device memory reservation only; kernels run on host threads"
	default:
		return "host memory; kernels run on host threads"
	}
}
