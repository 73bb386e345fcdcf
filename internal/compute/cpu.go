package compute

import (
	"fmt"
	"runtime"
	"sync"
)

// minRowsPerWorker keeps small grids on the calling goroutine.
const minRowsPerWorker = 16

type CPUBackend struct {
	workers int
	limit   int64

	mu   sync.Mutex
	used int64
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.NumCPU(),
	}
}

// NewCPUBackendWithLimit caps the bytes that may be allocated at once.
// A limit of zero or less means unlimited.
func NewCPUBackendWithLimit(limitBytes int64) *CPUBackend {
	c := NewCPUBackend()
	c.limit = limitBytes
	return c
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) Alloc(n int) ([]float32, error) {
	if n <= 0 {
		return nil, fmt.Errorf("compute: invalid allocation of %d elements", n)
	}
	size := int64(n) * 4

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.used+size > c.limit {
		return nil, fmt.Errorf("%w: requested %d bytes, %d of %d in use", ErrOutOfMemory, size, c.used, c.limit)
	}
	c.used += size
	return make([]float32, n), nil
}

func (c *CPUBackend) Free(buf []float32) {
	if len(buf) == 0 {
		return
	}
	c.mu.Lock()
	c.used -= int64(len(buf)) * 4
	if c.used < 0 {
		c.used = 0
	}
	c.mu.Unlock()
}

// InUse reports the bytes currently allocated through this backend.
func (c *CPUBackend) InUse() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *CPUBackend) ParallelRows(rows int, fn func(start, end int)) {
	parallelRows(c.workers, rows, fn)
}

func parallelRows(workers, rows int, fn func(start, end int)) {
	if rows <= 0 {
		return
	}
	if workers > rows/minRowsPerWorker {
		workers = rows / minRowsPerWorker
	}
	if workers <= 1 {
		fn(0, rows)
		return
	}

	var wg sync.WaitGroup
	chunkSize := (rows + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > rows {
			end = rows
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
